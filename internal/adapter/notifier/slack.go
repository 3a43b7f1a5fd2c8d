package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/atlasbank/mailtriage/internal/core/ports"
)

type SlackNotifier struct {
	botToken    string
	channel     string
	mentionTeam string
	httpClient  *http.Client
}

func NewSlackNotifier(botToken, channel, mentionTeam string) *SlackNotifier {
	return &SlackNotifier{
		botToken:    botToken,
		channel:     channel,
		mentionTeam: mentionTeam,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NotifyAgentReview posts a low-confidence email to the agent queue channel
// with the scoring derivation attached for operator visibility.
func (s *SlackNotifier) NotifyAgentReview(review ports.AgentReviewNotification) error {
	blocks := s.buildAgentReviewBlocks(review)

	payload := SlackMessage{
		Channel: s.channel,
		Blocks:  blocks,
		Text:    fmt.Sprintf("📬 Email needs agent review (score %d/%d)", review.Score, review.Threshold),
	}

	return s.sendMessage(payload)
}

func (s *SlackNotifier) buildAgentReviewBlocks(review ports.AgentReviewNotification) []SlackBlock {
	blocks := []SlackBlock{
		// Header
		{
			Type: "header",
			Text: &SlackText{
				Type: "plain_text",
				Text: "📬 Email Routed to Agent Review",
			},
		},
		// Analysis summary
		{
			Type: "section",
			Fields: []SlackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Contact ID*\n%s", review.ContactID)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Customer*\n%s", review.CustomerName)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Category*\n%s", review.Category)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Confidence*\n%d (threshold %d)", review.Score, review.Threshold)},
			},
		},
		{
			Type: "divider",
		},
		{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*Intent*\n%s", review.Intent),
			},
		},
		{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*Why*\n%s", review.Explanation),
			},
		},
	}

	if review.SuggestedResponse != "" {
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*Draft reply*\n```%s```", truncate(review.SuggestedResponse, 2500)),
			},
		})
	}

	blocks = append(blocks, SlackBlock{
		Type: "section",
		Text: &SlackText{
			Type: "mrkdwn",
			Text: fmt.Sprintf("%s please pick this up.", s.mentionTeam),
		},
	})

	return blocks
}

func (s *SlackNotifier) sendMessage(payload SlackMessage) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack payload: %w", err)
	}

	req, err := http.NewRequest("POST", "https://slack.com/api/chat.postMessage", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create Slack request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.botToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack message: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode Slack response: %w", err)
	}

	if !result.OK {
		return fmt.Errorf("Slack API error: %s", result.Error)
	}

	return nil
}

// truncate cuts s to at most max bytes without splitting a rune, so the
// payload stays valid UTF-8 for the Slack API.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

// Slack message payload structures

type SlackMessage struct {
	Channel string       `json:"channel"`
	Text    string       `json:"text"`
	Blocks  []SlackBlock `json:"blocks,omitempty"`
}

type SlackBlock struct {
	Type   string      `json:"type"`
	Text   *SlackText  `json:"text,omitempty"`
	Fields []SlackText `json:"fields,omitempty"`
}

type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
