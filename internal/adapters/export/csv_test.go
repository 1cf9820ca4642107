package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"hashtag-ingest/internal/domain"
)

func TestWriteCSV(t *testing.T) {
	retweetOf := "900"
	tweets := []domain.Tweet{
		{
			TweetID:        "1001",
			Text:           "пример текста, с запятой",
			CreatedAt:      time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC),
			Language:       "en",
			Mentions:       "@alice,@bob",
			Hashtags:       "#radiology",
			RetweetCount:   3,
			LikeCount:      7,
			AuthorID:       "42",
			AuthorUsername: "alice",
			RetweetOf:      &retweetOf,
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, tweets); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("ожидали 2 строки, получили %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "tweet_id,text,created_at") {
		t.Fatalf("неожиданный заголовок: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"пример текста, с запятой"`) {
		t.Fatalf("текст с запятой должен быть в кавычках: %s", lines[1])
	}
	if !strings.Contains(lines[1], "2023-05-01T12:00:00Z") {
		t.Fatalf("ожидали время в RFC3339: %s", lines[1])
	}
	if !strings.HasSuffix(lines[1], ",900,") {
		t.Fatalf("ожидали retweet_of=900 и пустой quoted_tweet: %s", lines[1])
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("ожидали только заголовок, получили %d строк", len(lines))
	}
}
