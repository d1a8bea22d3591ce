package cachesubstrate

import "fmt"

// Key templates are centralized here so every caller agrees on the exact
// here means every policy-store recipe invalidates and reads the same
// key a caller would construct by hand.

func DialogKey(chatID int64) string        { return fmt.Sprintf("dia:%d", chatID) }
func LangKey(chatID int64) string          { return fmt.Sprintf("lang:%d", chatID) }
func UserKey(userID int64) string          { return fmt.Sprintf("usrc:%d", userID) }
func HandleKey(handle string) string       { return fmt.Sprintf("uname:%s", handle) }
func ChatKey(chatID int64) string          { return fmt.Sprintf("chat:%d", chatID) }
func IgnoreCountKey(chatID int64) string   { return fmt.Sprintf("ignc:%d", chatID) }
func ActionKey(userID, chatID int64) string {
	return fmt.Sprintf("act:%d:%d", userID, chatID)
}
func WarnsKey(userID, chatID int64) string {
	return fmt.Sprintf("warns:%d:%d", userID, chatID)
}
func ApprovalKey(chatID, userID int64) string {
	return fmt.Sprintf("ap:%d:%d", chatID, userID)
}
func ConversationKey(chatID, userID int64) string {
	return fmt.Sprintf("conv:%d:%d", chatID, userID)
}
func BlocklistKey(chatID, id int64) string {
	return fmt.Sprintf("blockl:%d:%d", chatID, id)
}
func BlocklistCacheKey(chatID int64) string { return fmt.Sprintf("bcache:%d", chatID) }
func FilterKey(chatID, id int64) string {
	return fmt.Sprintf("filter:%d:%d", chatID, id)
}
func FilterCacheKey(chatID int64) string { return fmt.Sprintf("fcache:%d", chatID) }
func LockKey(chatID int64, lockType int) string {
	return fmt.Sprintf("lock:%d:%d", chatID, lockType)
}
func DefaultActionKey(chatID int64) string { return fmt.Sprintf("daction:%d", chatID) }
func WelcomeKey(chatID int64) string       { return fmt.Sprintf("welcome:%d", chatID) }
func DeepLinkKey(token string) string      { return fmt.Sprintf("bdlk:%s", token) }
func RulesDeepLinkKey(token string) string { return fmt.Sprintf("dlrules:%s", token) }
func CaptchaAuthKey(userID, chatID int64) string {
	return fmt.Sprintf("cauth:%d:%d", userID, chatID)
}
func CaptchaStateKey(chatID int64) string { return fmt.Sprintf("cstate:%d", chatID) }
func CaptchaAttemptKey(userID, chatID int64) string {
	return fmt.Sprintf("cak:%d:%d", userID, chatID)
}
func MemberKey(userID int64) string { return fmt.Sprintf("mbr:%d", userID) }
