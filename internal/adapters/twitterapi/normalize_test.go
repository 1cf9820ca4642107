package twitterapi

import (
	"testing"
	"time"

	"hashtag-ingest/internal/domain"
)

func samplePage() rawPage {
	return rawPage{
		Data: []rawTweet{
			{
				ID:        "1001",
				Text:      "Deep learning in radiology",
				CreatedAt: "2023-05-01T12:00:00.000Z",
				Lang:      "en",
				AuthorID:  "42",
				PublicMetrics: rawTweetMetrics{
					RetweetCount: 3, ReplyCount: 1, LikeCount: 7, QuoteCount: 2,
				},
				Entities: rawEntities{
					Hashtags: []rawTag{{Tag: "radiology"}, {Tag: "AI"}},
					Mentions: []rawMention{{Username: "bob"}},
				},
				Attachments: rawAttachments{MediaKeys: []string{"3_111", "3_999"}},
				ReferencedTweets: []rawReference{
					{Type: "replied_to", ID: "900"},
					{Type: "quoted", ID: "901"},
				},
			},
		},
		Includes: rawIncludes{
			Media: []rawMedia{{MediaKey: "3_111", URL: "https://pbs.example/img.jpg"}},
			Users: []rawUser{{
				ID: "42", Username: "alice", Name: "Alice", Description: "radiologist",
				PublicMetrics: rawUserMetrics{FollowersCount: 100, FollowingCount: 50, TweetCount: 900},
			}},
		},
	}
}

func TestNormalizePage(t *testing.T) {
	tweets, skipped := normalizePage(samplePage())
	if len(skipped) != 0 {
		t.Fatalf("не ожидали пропусков: %v", skipped)
	}
	if len(tweets) != 1 {
		t.Fatalf("ожидали 1 запись, получили %d", len(tweets))
	}

	got := tweets[0]
	if got.TweetID != "1001" {
		t.Fatalf("ожидали tweet_id=1001, получили %s", got.TweetID)
	}
	if !got.CreatedAt.Equal(time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("неожиданная дата: %v", got.CreatedAt)
	}
	if got.Hashtags != "#radiology,#AI" {
		t.Fatalf("ожидали «#radiology,#AI», получили %q", got.Hashtags)
	}
	if got.Mentions != "@bob" {
		t.Fatalf("ожидали «@bob», получили %q", got.Mentions)
	}
	// Неразрешённый ключ 3_999 отброшен.
	if got.Media != "https://pbs.example/img.jpg" {
		t.Fatalf("неожиданные медиа: %q", got.Media)
	}
	if got.AuthorUsername != "alice" || got.AuthorBio != "radiologist" {
		t.Fatalf("автор не подтянулся из includes: %+v", got)
	}
	if got.AuthorFollowersCount != 100 || got.AuthorTweetCount != 900 {
		t.Fatalf("метрики автора не подтянулись: %+v", got)
	}
	if got.ReplyTo == nil || *got.ReplyTo != "900" {
		t.Fatalf("ожидали reply_to=900, получили %v", got.ReplyTo)
	}
	if got.QuotedTweet == nil || *got.QuotedTweet != "901" {
		t.Fatalf("ожидали quoted=901, получили %v", got.QuotedTweet)
	}
	if got.RetweetOf != nil {
		t.Fatalf("retweet_of должен быть пустым, получили %v", *got.RetweetOf)
	}
}

func TestNormalizePageMissingAuthor(t *testing.T) {
	page := samplePage()
	page.Data = append(page.Data, rawTweet{
		ID: "1002", Text: "orphan", CreatedAt: "2023-05-01T13:00:00.000Z", AuthorID: "777",
	})

	tweets, skipped := normalizePage(page)
	if len(tweets) != 1 {
		t.Fatalf("уцелевшая запись должна пройти, получили %d", len(tweets))
	}
	if len(skipped) != 1 {
		t.Fatalf("ожидали 1 пропуск, получили %d", len(skipped))
	}
	var recErr *domain.RecordError = skipped[0]
	if recErr.TweetID != "1002" {
		t.Fatalf("ожидали пропуск 1002, получили %s", recErr.TweetID)
	}
}

func TestNormalizePageBadCreatedAt(t *testing.T) {
	page := samplePage()
	page.Data[0].CreatedAt = "вчера"

	tweets, skipped := normalizePage(page)
	if len(tweets) != 0 || len(skipped) != 1 {
		t.Fatalf("ожидали 1 пропуск из-за даты, получили %d/%d", len(tweets), len(skipped))
	}
}

func TestNormalizePageDuplicateRefsLastWins(t *testing.T) {
	page := samplePage()
	page.Data[0].ReferencedTweets = []rawReference{
		{Type: "replied_to", ID: "900"},
		{Type: "replied_to", ID: "905"},
	}

	tweets, _ := normalizePage(page)
	if len(tweets) != 1 {
		t.Fatalf("ожидали 1 запись")
	}
	if tweets[0].ReplyTo == nil || *tweets[0].ReplyTo != "905" {
		t.Fatalf("при дублях ссылок побеждает последняя, получили %v", tweets[0].ReplyTo)
	}
}

func TestNormalizePagePreservesOrder(t *testing.T) {
	page := samplePage()
	second := page.Data[0]
	second.ID = "1000"
	page.Data = append(page.Data, second)

	tweets, _ := normalizePage(page)
	if len(tweets) != 2 || tweets[0].TweetID != "1001" || tweets[1].TweetID != "1000" {
		t.Fatalf("порядок страницы должен сохраняться: %+v", tweets)
	}
}
