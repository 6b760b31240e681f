package homework

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"homework-bot/internal/domain"
	"homework-bot/internal/infra/cache"
)

const fixedNow = int64(1700000000)

type fetchResult struct {
	body any
	err  error
}

type stubFetcher struct {
	results []fetchResult
	calls   []int64
	onCall  func(n int)
}

func (s *stubFetcher) Fetch(_ context.Context, fromDate int64) (any, error) {
	s.calls = append(s.calls, fromDate)
	if s.onCall != nil {
		s.onCall(len(s.calls))
	}
	if len(s.results) == 0 {
		return map[string]any{"homeworks": []any{}}, nil
	}
	idx := len(s.calls) - 1
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	r := s.results[idx]
	return r.body, r.err
}

type stubNotifier struct {
	sent   []string
	failOn func(text string) bool
}

func (s *stubNotifier) Send(_ context.Context, text string) error {
	if s.failOn != nil && s.failOn(text) {
		return fmt.Errorf("%w: chat not found", domain.ErrSendMessage)
	}
	s.sent = append(s.sent, text)
	return nil
}

type stubJournal struct{ events []domain.StatusEvent }

func (s *stubJournal) SaveStatusEvent(_ context.Context, e domain.StatusEvent) error {
	s.events = append(s.events, e)
	return nil
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, domain.StatusEvent) error {
	f.calls++
	return errors.New("broker down")
}

func clock() time.Time { return time.Unix(fixedNow, 0) }

func mustDecode(t *testing.T, raw string) any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		t.Fatalf("не удалось разобрать %s: %v", raw, err)
	}
	return body
}

func newTestPoller(f domain.StatusFetcher, n domain.Notifier, opts ...Option) *Poller {
	opts = append([]Option{WithClock(clock)}, opts...)
	return NewPoller(f, n, zerolog.Nop(), opts...)
}

func TestRunCycleSendsNotificationAndAdvancesCursor(t *testing.T) {
	fetcher := &stubFetcher{results: []fetchResult{{body: mustDecode(t, `{"homeworks":[{"homework_name":"hw1","status":"approved"}],"current_date":1700000100}`)}}}
	notifier := &stubNotifier{}
	p := newTestPoller(fetcher, notifier)

	if err := p.RunCycle(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	want := `Изменился статус проверки работы "hw1". Работа проверена: ревьюеру всё понравилось. Ура!`
	if len(notifier.sent) != 1 || notifier.sent[0] != want {
		t.Fatalf("неожиданные уведомления: %q", notifier.sent)
	}
	if fetcher.calls[0] != fixedNow {
		t.Fatalf("ожидали from_date=%d, получили %d", fixedNow, fetcher.calls[0])
	}
	if p.Cursor() != 1700000100 {
		t.Fatalf("ожидали курсор 1700000100, получили %d", p.Cursor())
	}
}

func TestRunCycleProcessesWholeList(t *testing.T) {
	fetcher := &stubFetcher{results: []fetchResult{{body: mustDecode(t, `{"homeworks":[
		{"homework_name":"hw1","status":"approved"},
		{"homework_name":"hw2","status":"reviewing"},
		{"homework_name":"hw3","status":"rejected"}]}`)}}}
	notifier := &stubNotifier{}
	p := newTestPoller(fetcher, notifier)

	if err := p.RunCycle(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(notifier.sent) != 3 {
		t.Fatalf("ожидали 3 уведомления, получили %d", len(notifier.sent))
	}
}

func TestRunCycleEmptyHomeworksFallsBackToClock(t *testing.T) {
	fetcher := &stubFetcher{results: []fetchResult{{body: mustDecode(t, `{"homeworks":[]}`)}}}
	notifier := &stubNotifier{}
	later := time.Unix(fixedNow+600, 0)
	p := NewPoller(fetcher, notifier, zerolog.Nop(), WithClock(clock))
	p.now = func() time.Time { return later }

	if err := p.RunCycle(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("не ожидали уведомлений, получили %q", notifier.sent)
	}
	if p.Cursor() != later.Unix() {
		t.Fatalf("ожидали курсор %d, получили %d", later.Unix(), p.Cursor())
	}
}

func TestRunCycleStatusCodeErrorKeepsCursor(t *testing.T) {
	fetcher := &stubFetcher{results: []fetchResult{{err: fmt.Errorf("%w: status_code: 503", domain.ErrStatusCode)}}}
	notifier := &stubNotifier{}
	p := newTestPoller(fetcher, notifier)

	err := p.RunCycle(context.Background())
	if !errors.Is(err, domain.ErrStatusCode) {
		t.Fatalf("ожидали ErrStatusCode, получили %v", err)
	}
	if p.Cursor() != fixedNow {
		t.Fatalf("курсор не должен меняться, получили %d", p.Cursor())
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("RunCycle не должен сам отправлять отчёт об ошибке")
	}
}

func TestRunCycleUnknownStatus(t *testing.T) {
	fetcher := &stubFetcher{results: []fetchResult{{body: mustDecode(t, `{"homeworks":[{"homework_name":"hw2","status":"archived"}]}`)}}}
	notifier := &stubNotifier{}
	p := newTestPoller(fetcher, notifier)

	err := p.RunCycle(context.Background())
	if !errors.Is(err, domain.ErrUnknownStatus) {
		t.Fatalf("ожидали ErrUnknownStatus, получили %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("не ожидали уведомлений для hw2, получили %q", notifier.sent)
	}
}

func TestRunCycleBadRecordDoesNotBlockOthers(t *testing.T) {
	fetcher := &stubFetcher{results: []fetchResult{{body: mustDecode(t, `{"homeworks":[
		{"homework_name":"hw1","status":"approved"},
		{"homework_name":"hw2","status":"archived"}],"current_date":1700000200}`)}}}
	notifier := &stubNotifier{}
	p := newTestPoller(fetcher, notifier)

	err := p.RunCycle(context.Background())
	if !errors.Is(err, domain.ErrUnknownStatus) {
		t.Fatalf("ожидали ErrUnknownStatus, получили %v", err)
	}
	if len(notifier.sent) != 1 || !strings.Contains(notifier.sent[0], `"hw1"`) {
		t.Fatalf("ожидали уведомление только для hw1, получили %q", notifier.sent)
	}
	if p.Cursor() != 1700000200 {
		t.Fatalf("ожидали сдвиг курсора, получили %d", p.Cursor())
	}
}

func TestRunCycleRejectsNonMappingBeforeSending(t *testing.T) {
	fetcher := &stubFetcher{results: []fetchResult{{body: mustDecode(t, `[{"homework_name":"hw1","status":"approved"}]`)}}}
	notifier := &stubNotifier{}
	p := newTestPoller(fetcher, notifier)

	if err := p.RunCycle(context.Background()); !errors.Is(err, domain.ErrTypeMismatch) {
		t.Fatalf("ожидали ErrTypeMismatch, получили %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("не ожидали отправок")
	}
}

func TestRunCycleSendFailureKeepsCursor(t *testing.T) {
	fetcher := &stubFetcher{results: []fetchResult{{body: mustDecode(t, `{"homeworks":[{"homework_name":"hw1","status":"approved"}],"current_date":1700000100}`)}}}
	notifier := &stubNotifier{failOn: func(string) bool { return true }}
	p := newTestPoller(fetcher, notifier)

	if err := p.RunCycle(context.Background()); !errors.Is(err, domain.ErrSendMessage) {
		t.Fatalf("ожидали ErrSendMessage, получили %v", err)
	}
	if p.Cursor() != fixedNow {
		t.Fatalf("курсор не должен меняться, получили %d", p.Cursor())
	}
}

func TestRunCycleDedupSkipsRepeatedStatus(t *testing.T) {
	body := `{"homeworks":[{"id":7,"homework_name":"hw1","status":"reviewing","date_updated":"2023-11-14T22:13:20Z"}]}`
	fetcher := &stubFetcher{results: []fetchResult{{body: mustDecode(t, body)}, {body: mustDecode(t, body)}}}
	notifier := &stubNotifier{}
	p := newTestPoller(fetcher, notifier, WithDedup(cache.NewMemory(), time.Hour))

	for i := 0; i < 2; i++ {
		if err := p.RunCycle(context.Background()); err != nil {
			t.Fatalf("цикл %d: не ожидали ошибку: %v", i, err)
		}
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("ожидали одно уведомление, получили %d", len(notifier.sent))
	}
}

func TestRunCycleDedupKeepsRepeatedTransitionWithoutDate(t *testing.T) {
	fetcher := &stubFetcher{results: []fetchResult{
		{body: mustDecode(t, `{"homeworks":[{"homework_name":"hw1","status":"reviewing"}]}`)},
		{body: mustDecode(t, `{"homeworks":[{"homework_name":"hw1","status":"rejected"}]}`)},
		{body: mustDecode(t, `{"homeworks":[{"homework_name":"hw1","status":"reviewing"}]}`)},
	}}
	notifier := &stubNotifier{}
	p := newTestPoller(fetcher, notifier, WithDedup(cache.NewMemory(), 720*time.Hour))

	for i := 0; i < 3; i++ {
		if err := p.RunCycle(context.Background()); err != nil {
			t.Fatalf("цикл %d: не ожидали ошибку: %v", i, err)
		}
	}
	if len(notifier.sent) != 3 {
		t.Fatalf("ожидали 3 уведомления, получили %d: %q", len(notifier.sent), notifier.sent)
	}
	if !strings.Contains(notifier.sent[2], domain.Verdicts[domain.StatusReviewing]) {
		t.Fatalf("третье уведомление должно быть о ревью: %q", notifier.sent[2])
	}
}

func TestRunCycleRecordsEvents(t *testing.T) {
	fetcher := &stubFetcher{results: []fetchResult{{body: mustDecode(t, `{"homeworks":[{"id":42,"homework_name":"hw1","status":"rejected","reviewer_comment":"поправь тесты"}]}`)}}}
	notifier := &stubNotifier{}
	journal := &stubJournal{}
	publisher := &failingPublisher{}
	p := newTestPoller(fetcher, notifier, WithJournal(journal), WithEvents(publisher))

	if err := p.RunCycle(context.Background()); err != nil {
		t.Fatalf("ошибка публикации не должна ломать цикл: %v", err)
	}
	if len(journal.events) != 1 {
		t.Fatalf("ожидали одно событие в журнале, получили %d", len(journal.events))
	}
	ev := journal.events[0]
	if ev.HomeworkID != "42" || ev.Status != domain.StatusRejected || ev.ReviewerComment != "поправь тесты" {
		t.Fatalf("неожиданное событие: %+v", ev)
	}
	if ev.ID == "" || ev.Message != notifier.sent[0] {
		t.Fatalf("событие должно содержать id и текст уведомления: %+v", ev)
	}
	if publisher.calls != 1 {
		t.Fatalf("ожидали одну попытку публикации, получили %d", publisher.calls)
	}
}

func TestRunReportsErrorsAndKeepsPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := &stubFetcher{
		results: []fetchResult{
			{err: fmt.Errorf("%w: connection refused", domain.ErrConnection)},
			{err: fmt.Errorf("%w: status_code: 503", domain.ErrStatusCode)},
			{body: mustDecode(t, `{"homeworks":[]}`)},
		},
	}
	fetcher.onCall = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	reportFailures := 0
	notifier := &stubNotifier{failOn: func(text string) bool {
		if strings.Contains(text, "status_code") {
			reportFailures++
			return true
		}
		return false
	}}
	p := newTestPoller(fetcher, notifier, WithInterval(time.Millisecond))

	err := p.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидали context.Canceled, получили %v", err)
	}
	if len(fetcher.calls) != 3 {
		t.Fatalf("ожидали 3 цикла, получили %d", len(fetcher.calls))
	}
	for i, c := range fetcher.calls {
		if c != fixedNow {
			t.Fatalf("цикл %d: курсор не должен меняться после ошибок, получили %d", i, c)
		}
	}
	if len(notifier.sent) != 1 || !strings.HasPrefix(notifier.sent[0], "Сбой в работе программы: ") {
		t.Fatalf("ожидали один доставленный отчёт об ошибке, получили %q", notifier.sent)
	}
	if reportFailures != 1 {
		t.Fatalf("ожидали одну неудачную отправку отчёта, получили %d", reportFailures)
	}
}

func TestHealth(t *testing.T) {
	fetcher := &stubFetcher{}
	p := newTestPoller(fetcher, &stubNotifier{}, WithInterval(time.Minute))

	if _, ok := p.Health(); ok {
		t.Fatalf("до запуска опросчик не должен считаться здоровым")
	}
	if err := p.RunCycle(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	h, ok := p.Health()
	if !ok || h.Status != "ok" || h.LastSuccess != fixedNow {
		t.Fatalf("неожиданное состояние: %+v", h)
	}

	p.now = func() time.Time { return time.Unix(fixedNow+int64(4*time.Minute/time.Second), 0) }
	if _, ok := p.Health(); ok {
		t.Fatalf("после долгого простоя ожидали degraded")
	}
}
