package twitterapi

import (
	"strings"
	"time"

	"hashtag-ingest/internal/domain"
)

// buildMediaTable собирает side-таблицу media_key → URL.
// Отсутствующий у медиа URL превращается в пустую строку.
func buildMediaTable(media []rawMedia) map[string]string {
	table := make(map[string]string, len(media))
	for _, m := range media {
		table[m.MediaKey] = m.URL
	}
	return table
}

// buildAuthorTable собирает side-таблицу author_id → автор.
func buildAuthorTable(users []rawUser) map[string]rawUser {
	table := make(map[string]rawUser, len(users))
	for _, u := range users {
		table[u.ID] = u
	}
	return table
}

// normalizePage превращает сырую страницу в плоские записи.
// Порядок вывода совпадает с порядком страницы: он определяет, чем
// закончится продвижение курсора. Ошибка одной записи не роняет
// страницу: запись попадает в список пропущенных.
func normalizePage(page rawPage) ([]domain.Tweet, []*domain.RecordError) {
	mediaTable := buildMediaTable(page.Includes.Media)
	authors := buildAuthorTable(page.Includes.Users)

	tweets := make([]domain.Tweet, 0, len(page.Data))
	var skipped []*domain.RecordError

	for _, rt := range page.Data {
		author, ok := authors[rt.AuthorID]
		if !ok {
			skipped = append(skipped, &domain.RecordError{
				TweetID: rt.ID,
				Reason:  "автор отсутствует в includes",
			})
			continue
		}

		createdAt, err := time.Parse(time.RFC3339, rt.CreatedAt)
		if err != nil {
			skipped = append(skipped, &domain.RecordError{
				TweetID: rt.ID,
				Reason:  "некорректная дата создания: " + rt.CreatedAt,
			})
			continue
		}

		hashtags := make([]string, 0, len(rt.Entities.Hashtags))
		for _, h := range rt.Entities.Hashtags {
			hashtags = append(hashtags, "#"+h.Tag)
		}
		mentions := make([]string, 0, len(rt.Entities.Mentions))
		for _, m := range rt.Entities.Mentions {
			mentions = append(mentions, "@"+m.Username)
		}

		// Неразрешённые media-ключи отбрасываются молча.
		media := make([]string, 0, len(rt.Attachments.MediaKeys))
		for _, key := range rt.Attachments.MediaKeys {
			if mediaURL, found := mediaTable[key]; found {
				media = append(media, mediaURL)
			}
		}

		// Источник может прислать несколько ссылок одного типа;
		// побеждает последняя встреченная — поведение исходного
		// потока данных сохранено намеренно.
		var replyTo, retweetOf, quoted *string
		for _, ref := range rt.ReferencedTweets {
			id := ref.ID
			switch ref.Type {
			case "retweeted":
				retweetOf = &id
			case "replied_to":
				replyTo = &id
			case "quoted":
				quoted = &id
			}
		}

		tweets = append(tweets, domain.Tweet{
			TweetID:   rt.ID,
			Text:      rt.Text,
			CreatedAt: createdAt.UTC(),
			Language:  rt.Lang,
			Mentions:  strings.Join(mentions, ","),
			Hashtags:  strings.Join(hashtags, ","),
			Media:     strings.Join(media, ","),

			RetweetCount: rt.PublicMetrics.RetweetCount,
			ReplyCount:   rt.PublicMetrics.ReplyCount,
			LikeCount:    rt.PublicMetrics.LikeCount,
			QuoteCount:   rt.PublicMetrics.QuoteCount,

			AuthorID:       rt.AuthorID,
			AuthorUsername: author.Username,
			AuthorBio:      author.Description,
			AuthorName:     author.Name,

			AuthorFollowersCount: author.PublicMetrics.FollowersCount,
			AuthorFollowingCount: author.PublicMetrics.FollowingCount,
			AuthorTweetCount:     author.PublicMetrics.TweetCount,

			ReplyTo:     replyTo,
			RetweetOf:   retweetOf,
			QuotedTweet: quoted,
		})
	}

	return tweets, skipped
}
