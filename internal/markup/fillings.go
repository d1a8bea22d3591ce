package markup

import "fmt"

// ChatUser is the bound rendering context: a chat and a user, available
// when a template is rendered in response to a
// specific observed message. Without one, Filling nodes cannot be resolved
// and their names are collected instead (see RequiredFillings on Result).
type ChatUser struct {
	UserID    int64
	Username  string // without leading @; empty if the user has none
	FirstName string
	LastName  string
	ChatID    int64
	ChatTitle string
}

// fillingNames is the closed set of recognized filling names. Anything outside
// this set is preserved literally as `{name}`.
var fillingNames = map[string]bool{
	"username": true,
	"first":    true,
	"last":     true,
	"mention":  true,
	"chatname": true,
	"id":       true,
	"rules":    true,
}

// resolveFilling substitutes one closed-set name given a bound context. It
// returns the literal text to insert and, for mention/username, whether a
// text_mention entity should wrap it.
func resolveFilling(name string, cu *ChatUser) (text string, mentionEntity bool, ok bool) {
	if !fillingNames[name] {
		return "", false, false
	}
	if cu == nil {
		return "", false, false // caller collects into RequiredFillings instead
	}
	switch name {
	case "username":
		if cu.Username == "" {
			return cu.FirstName, true, true
		}
		return "@" + cu.Username, true, true
	case "first":
		return cu.FirstName, false, true
	case "last":
		return cu.LastName, false, true
	case "mention":
		name := cu.FirstName
		if name == "" {
			name = cu.Username
		}
		return name, true, true
	case "chatname":
		return cu.ChatTitle, false, true
	case "id":
		return fmt.Sprintf("%d", cu.UserID), false, true
	case "rules":
		return "", false, true // rendered as a button by the caller, not text
	}
	return "", false, false
}
