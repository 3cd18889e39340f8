package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/haruo/melnotify/internal/mailbox"
)

func TestComposeSingleMessage(t *testing.T) {
	summaries := []mailbox.Summary{
		{From: "田中太郎 <taro@example.com>", Subject: "会議の件"},
	}

	got := Compose(summaries, 0, 1, 30)

	want := "📩 新着メール一覧:\n\n" +
		"田中太郎 <taro@example.com> / 会議の件\n" +
		"-----\n" +
		"【通知回数】1/30回\n" +
		"通知の継続をご希望の場合は、「メル通知」サポートまでご連絡ください。"
	assert.Equal(t, want, got)
}

func TestComposeWithOverflow(t *testing.T) {
	summaries := []mailbox.Summary{
		{From: "a@example.com", Subject: "one"},
		{From: "b@example.com", Subject: "two"},
	}

	got := Compose(summaries, 3, 12, 30)

	assert.Contains(t, got, "a@example.com / one\n")
	assert.Contains(t, got, "b@example.com / two\n")
	assert.Contains(t, got, "他 3 件の未読メールあり\n")
	assert.Contains(t, got, "【通知回数】12/30回")
}

func TestComposeNoOverflowLineWhenZero(t *testing.T) {
	got := Compose([]mailbox.Summary{{From: "a@example.com", Subject: "one"}}, 0, 1, 30)
	assert.NotContains(t, got, "未読メールあり")
}

func TestComposeDeterministic(t *testing.T) {
	summaries := []mailbox.Summary{
		{From: "a@example.com", Subject: "one"},
		{From: "b@example.com", Subject: "two"},
	}

	first := Compose(summaries, 2, 5, 30)
	second := Compose(summaries, 2, 5, 30)
	assert.Equal(t, first, second)
}

func TestComposeFooterAlwaysPresent(t *testing.T) {
	got := Compose(nil, 0, 30, 30)
	assert.True(t, strings.HasPrefix(got, "📩 新着メール一覧:"))
	assert.Contains(t, got, "【通知回数】30/30回")
}
