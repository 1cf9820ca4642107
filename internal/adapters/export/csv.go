package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"hashtag-ingest/internal/domain"
)

// csvHeader — порядок колонок выгрузки. Колонки совпадают с плоской
// схемой записи, списки уже склеены запятой внутри ячейки.
var csvHeader = []string{
	"tweet_id", "text", "created_at", "language",
	"mentions", "hashtags", "media",
	"retweet_count", "reply_count", "like_count", "quote_count",
	"author_id", "author_username", "author_bio", "author_name",
	"author_followers_count", "author_following_count", "author_tweet_count",
	"reply_to", "retweet_of", "quoted_tweet",
}

// WriteCSV пишет записи в CSV с заголовком. Пустые ссылки на другие
// записи выводятся пустой ячейкой.
func WriteCSV(w io.Writer, tweets []domain.Tweet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range tweets {
		row := []string{
			t.TweetID,
			t.Text,
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.Language,
			t.Mentions,
			t.Hashtags,
			t.Media,
			strconv.Itoa(t.RetweetCount),
			strconv.Itoa(t.ReplyCount),
			strconv.Itoa(t.LikeCount),
			strconv.Itoa(t.QuoteCount),
			t.AuthorID,
			t.AuthorUsername,
			t.AuthorBio,
			t.AuthorName,
			strconv.Itoa(t.AuthorFollowersCount),
			strconv.Itoa(t.AuthorFollowingCount),
			strconv.Itoa(t.AuthorTweetCount),
			deref(t.ReplyTo),
			deref(t.RetweetOf),
			deref(t.QuotedTweet),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
