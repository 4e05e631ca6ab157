package index

import "fmt"

// One namespace per end-user; all of a user's conversation vectors live under
// it and no query ever crosses it.
func ConversationNamespace(userID string) string {
	return fmt.Sprintf("conversations:user:%s", userID)
}
