package notify

import (
	"fmt"
	"strings"

	"github.com/haruo/melnotify/internal/mailbox"
)

// Compose renders the notification text for one polling cycle that found new
// mail: a header, one "From / Subject" line per summary, an overflow line
// when more messages exist than were shown, and a footer with the user's
// notification count against the lifetime limit.
//
// Pure function: identical inputs always produce byte-identical output.
func Compose(summaries []mailbox.Summary, overflow, notifyCount, limit int) string {
	var sb strings.Builder

	sb.WriteString("📩 新着メール一覧:\n\n")

	for _, s := range summaries {
		sb.WriteString(s.From)
		sb.WriteString(" / ")
		sb.WriteString(s.Subject)
		sb.WriteString("\n")
	}

	if overflow > 0 {
		fmt.Fprintf(&sb, "他 %d 件の未読メールあり\n", overflow)
	}

	sb.WriteString("-----\n")
	fmt.Fprintf(&sb, "【通知回数】%d/%d回\n", notifyCount, limit)
	sb.WriteString("通知の継続をご希望の場合は、「メル通知」サポートまでご連絡ください。")

	return sb.String()
}
