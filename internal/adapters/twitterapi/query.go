package twitterapi

import (
	"fmt"
	"strings"

	"hashtag-ingest/internal/domain"
)

// Лимит длины поискового запроса у наблюдаемого бэкенда.
const maxQueryLength = 512

// Выборка полей, которую API вернёт по каждой записи.
var (
	tweetFields = []string{
		"id", "text", "created_at", "public_metrics", "lang",
		"referenced_tweets", "entities", "geo", "attachments",
	}
	mediaFields = []string{"url"}

	expansions = []string{"author_id", "attachments.media_keys"}

	userFields = []string{"name", "username", "public_metrics", "description"}

	// Для веток ответов достаточно идентификатора и текста.
	replyTweetFields = []string{"id", "text"}
)

// BuildSearchQuery собирает поисковый запрос по одному тегу.
// since_id и окно времени в строку запроса не входят: они передаются
// отдельными параметрами и комбинируются независимо.
func BuildSearchQuery(name string, includeRetweets bool) (string, error) {
	query := "#" + name
	if !includeRetweets {
		query = "-is:retweet " + query
	}
	return checkLength(query)
}

// BuildCombinedQuery собирает общий запрос по нескольким тегам через OR.
func BuildCombinedQuery(names []string, includeRetweets bool) (string, error) {
	tags := make([]string, 0, len(names))
	for _, name := range names {
		tags = append(tags, "#"+name)
	}
	query := "(" + strings.Join(tags, " OR ") + ")"
	if !includeRetweets {
		query = "-is:retweet " + query
	}
	return checkLength(query)
}

// BuildReplyQuery собирает запрос по ветке обсуждения: ответ несёт
// conversation_id исходной записи и адресован её автору.
func BuildReplyQuery(conversationID, authorUsername string) string {
	return fmt.Sprintf("conversation_id:%s to:%s", conversationID, authorUsername)
}

func checkLength(query string) (string, error) {
	if len(query) > maxQueryLength {
		return "", fmt.Errorf("%w: %d символов при лимите %d — сократите набор тегов",
			domain.ErrQueryTooLong, len(query), maxQueryLength)
	}
	return query, nil
}
