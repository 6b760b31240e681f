package telegram

import "strings"

const messageLimit = 4096

// SplitMessage разбивает текст на части в пределах лимита Telegram.
func SplitMessage(text string) []string {
	return splitRunes(text, messageLimit)
}

// splitRunes режет текст на куски не длиннее limit рун. Разрез ставится на последнем
// переводе строки в окне, затем на последнем пробеле, иначе ровно по лимиту.
func splitRunes(text string, limit int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	var parts []string
	for len(runes) > limit {
		cut := lastIndex(runes[:limit+1], '\n')
		if cut <= 0 {
			cut = lastIndex(runes[:limit+1], ' ')
		}
		if cut <= 0 {
			cut = limit
		}
		if chunk := strings.TrimSpace(string(runes[:cut])); chunk != "" {
			parts = append(parts, chunk)
		}
		runes = []rune(strings.TrimLeft(string(runes[cut:]), " \n"))
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func lastIndex(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
