package main

import "unicode"

// isValidNick checks if a nickname can enter the nickname index. Nicks are
// non-empty and contain no whitespace. There is no canonical form;
// comparisons everywhere are exact and case sensitive.
func isValidNick(n string) bool {
	if len(n) == 0 {
		return false
	}

	for _, r := range n {
		if unicode.IsSpace(r) {
			return false
		}
	}

	return true
}

// isValidChannelName checks if a channel name is acceptable. Any non-empty
// name works. Command tokenization means names arriving over the wire never
// contain whitespace.
func isValidChannelName(name string) bool {
	return len(name) > 0
}
