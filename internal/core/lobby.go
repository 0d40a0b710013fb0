package core

import (
	"strconv"
	"strings"
)

// RoomKind decides which rules a room follows.
type RoomKind uint8

const (
	// KindPlain rooms have a crown, a ban list and user settings.
	KindPlain RoomKind = iota
	// KindEphemeral rooms ("test/" prefix) have no crown and no capacity.
	KindEphemeral
	// KindLobby rooms have no crown and hold at most lobbyCapacity members.
	KindLobby
)

func (k RoomKind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindEphemeral:
		return "ephemeral"
	case KindLobby:
		return "lobby"
	default:
		return "unknown"
	}
}

const (
	lobbyPrefix     = "lobby"
	ephemeralPrefix = "test/"
	lobbyCapacity   = 20
	maxSafeInteger  = 1<<53 - 1
)

// kindOf classifies a room id: "lobby", "lobby<digits>" and "lobbyNaN" are
// lobbies, "test/..." is ephemeral, everything else is plain.
func kindOf(id string) RoomKind {
	if suffix, ok := strings.CutPrefix(id, lobbyPrefix); ok {
		if suffix == "" || suffix == "NaN" || isDigits(suffix) {
			return KindLobby
		}
		return KindPlain
	}
	if strings.HasPrefix(id, ephemeralPrefix) {
		return KindEphemeral
	}
	return KindPlain
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// nextLobby returns the lobby to try when id is full. Suffixes past the
// safe-integer range wrap to lobby1 so the sequence can never get stuck.
func nextLobby(id string) string {
	suffix := strings.TrimPrefix(id, lobbyPrefix)
	switch suffix {
	case "":
		return "lobby2"
	case "NaN":
		return "lobby1"
	}
	n, err := strconv.ParseUint(suffix, 10, 64)
	if err != nil || n > maxSafeInteger {
		n = 0
	}
	return lobbyPrefix + strconv.FormatUint(n+1, 10)
}
