package gateway

import (
	"fmt"
	"strings"

	"newsdesk/internal/models"
	"newsdesk/internal/telegram"
)

// Variants the moderator can pick from in the builder.
var styleVariants = []string{"standard", "punchy", "longform"}

// builderOptions are the tunable rewrite preferences shown on the builder
// screen, keyed by selection name.
var builderOptions = map[string][]string{
	"tone":   {"neutral", "formal", "casual"},
	"length": {"short", "medium", "full"},
}

// renderItemSummary is the text block shown above every moderation keyboard.
func renderItemSummary(item models.ContentItem) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📰 %s\n\n", item.Title)

	body := item.Body
	if len([]rune(body)) > 500 {
		body = string([]rune(body)[:500]) + "…"
	}
	b.WriteString(body)

	fmt.Fprintf(&b, "\n\nModeration: %s", item.ModerationStatus)
	if item.PublishStatus != models.PublishNone {
		fmt.Fprintf(&b, "\nPublishing: %s", item.PublishStatus)
	}
	if item.PublishError != "" {
		fmt.Fprintf(&b, "\nLast error: %s", item.PublishError)
	}
	if len(item.Languages) > 0 {
		codes := make([]string, 0, len(item.Languages))
		for _, l := range item.Languages {
			codes = append(codes, string(l))
		}
		fmt.Fprintf(&b, "\nLanguages: %s", strings.Join(codes, ", "))
	}
	if item.SelectedVariant != "" {
		fmt.Fprintf(&b, "\nStyle: %s", item.SelectedVariant)
	}
	return b.String()
}

// moderationKeyboard is the initial approve/reject screen.
func moderationKeyboard(id string) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{
			{Text: "✅ Approve", CallbackData: EncodeApprove(id)},
			{Text: "🗑 Reject", CallbackData: EncodeReject(id)},
		},
	}}
}

// approvedKeyboard is the main screen for an approved item: publish now, or
// tune languages and style first.
func approvedKeyboard(item models.ContentItem) *telegram.InlineKeyboardMarkup {
	enabled := make(map[models.Language]bool, len(item.Languages))
	for _, l := range item.Languages {
		enabled[l] = true
	}

	var langRow []telegram.InlineKeyboardButton
	for _, lang := range models.DefaultLanguages {
		label := string(lang)
		if enabled[lang] {
			label = "✓ " + label
		}
		langRow = append(langRow, telegram.InlineKeyboardButton{
			Text:         label,
			CallbackData: EncodeLanguage(item.ID, lang),
		})
	}

	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: "🚀 Publish", CallbackData: EncodePublish(item.ID)}},
		langRow,
		{{Text: "🛠 Style builder", CallbackData: EncodeBuilder(item.ID)}},
	}}
}

// builderKeyboard lets the moderator pick a variant and rewrite preferences.
func builderKeyboard(item models.ContentItem) *telegram.InlineKeyboardMarkup {
	var rows [][]telegram.InlineKeyboardButton

	var variantRow []telegram.InlineKeyboardButton
	for _, v := range styleVariants {
		label := v
		if item.SelectedVariant == v {
			label = "✓ " + label
		}
		variantRow = append(variantRow, telegram.InlineKeyboardButton{
			Text:         label,
			CallbackData: EncodeVariant(item.ID, v),
		})
	}
	rows = append(rows, variantRow)

	for _, key := range []string{"tone", "length"} {
		var row []telegram.InlineKeyboardButton
		for _, value := range builderOptions[key] {
			label := value
			if item.BuilderSelections[key] == value {
				label = "✓ " + label
			}
			row = append(row, telegram.InlineKeyboardButton{
				Text:         label,
				CallbackData: EncodeBuilderSelect(item.ID, key, value),
			})
		}
		rows = append(rows, row)
	}

	rows = append(rows, []telegram.InlineKeyboardButton{
		{Text: "← Back", CallbackData: EncodeBack(item.ID)},
	})
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// keyboardFor picks the right screen for the item's current state.
func keyboardFor(item models.ContentItem) *telegram.InlineKeyboardMarkup {
	switch item.ModerationStatus {
	case models.ModerationApproved:
		return approvedKeyboard(item)
	case models.ModerationRejected:
		return nil
	default:
		return moderationKeyboard(item.ID)
	}
}
