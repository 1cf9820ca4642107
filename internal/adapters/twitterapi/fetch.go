package twitterapi

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hashtag-ingest/internal/domain"
	"hashtag-ingest/internal/infra/metrics"
)

// FetchTweets обходит страницы поиска по тегу и отдаёт fn
// нормализованный результат каждой страницы в порядке пагинации.
func (c *Client) FetchTweets(ctx context.Context, tag domain.Hashtag, opts domain.FetchOptions, fn func(page domain.PageResult) error) error {
	query, err := BuildSearchQuery(tag.Name, opts.IncludeRetweets)
	if err != nil {
		return err
	}

	params := c.searchParams(query)
	if opts.SinceID != "" {
		params.Set("since_id", opts.SinceID)
	}
	if w := opts.Window; w != nil {
		params.Set("start_time", w.Start.UTC().Format(time.RFC3339))
		params.Set("end_time", w.End.UTC().Format(time.RFC3339))
	}

	return c.forEachSearchPage(ctx, c.searchURL(tag.Endpoint), params, c.bearer(tag.Endpoint), "search_page", tag.Name, func(page rawPage) error {
		metrics.IngestPagesTotal.WithLabelValues(string(tag.Endpoint)).Inc()
		tweets, skipped := normalizePage(page)
		for _, rec := range skipped {
			metrics.IngestSkippedRecords.Inc()
			c.log.Warn().
				Str("hashtag", tag.Name).
				Str("tweet_id", rec.TweetID).
				Str("reason", rec.Reason).
				Msg("twitter: запись пропущена при нормализации")
		}
		metrics.IngestTweetsTotal.WithLabelValues(string(tag.Endpoint)).Add(float64(len(tweets)))
		return fn(domain.PageResult{Tweets: tweets, Skipped: skipped})
	})
}

// FetchReplies выгружает ветку ответов на запись. Ровно один уровень
// вглубь: ответы на ответы не разворачиваются.
func (c *Client) FetchReplies(ctx context.Context, tag domain.Hashtag, parent domain.Tweet) ([]domain.Reply, error) {
	params := url.Values{}
	params.Set("query", BuildReplyQuery(parent.TweetID, parent.AuthorUsername))
	params.Set("max_results", strconv.Itoa(c.cfg.MaxResults))
	params.Set("tweet.fields", strings.Join(replyTweetFields, ","))

	var replies []domain.Reply
	err := c.forEachSearchPage(ctx, c.searchURL(tag.Endpoint), params, c.bearer(tag.Endpoint), "replies_page", parent.TweetID, func(page rawPage) error {
		for _, rt := range page.Data {
			replies = append(replies, domain.Reply{
				ParentTweetID: parent.TweetID,
				ReplyTweetID:  rt.ID,
				Text:          rt.Text,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return replies, nil
}

// FetchVolumes выгружает агрегаты объёмов по тегу за окно времени.
// Запрос строится тем же билдером и с тем же флагом ретвитов, что и
// выгрузка записей, иначе объёмы не бьются с собранными данными.
func (c *Client) FetchVolumes(ctx context.Context, tag domain.Hashtag, window *domain.TimeWindow, includeRetweets bool) ([]domain.VolumeBucket, error) {
	query, err := BuildSearchQuery(tag.Name, includeRetweets)
	if err != nil {
		return nil, err
	}
	buckets, err := c.collectCounts(ctx, tag.Endpoint, query, window, tag.Name)
	if err != nil {
		return nil, err
	}
	for i := range buckets {
		buckets[i].HashtagID = tag.ID
	}
	return buckets, nil
}

// FetchCombinedVolumes считает суммарные объёмы по нескольким тегам
// одним OR-запросом. Бакеты не атрибуцируются по отдельным тегам и в
// таблицу объёмов не пишутся: это живой справочный срез.
func (c *Client) FetchCombinedVolumes(ctx context.Context, endpoint domain.EndpointClass, names []string, window *domain.TimeWindow, includeRetweets bool) ([]domain.VolumeBucket, error) {
	query, err := BuildCombinedQuery(names, includeRetweets)
	if err != nil {
		return nil, err
	}
	return c.collectCounts(ctx, endpoint, query, window, strings.Join(names, ","))
}

func (c *Client) collectCounts(ctx context.Context, endpoint domain.EndpointClass, query string, window *domain.TimeWindow, target string) ([]domain.VolumeBucket, error) {
	params := url.Values{}
	params.Set("query", query)
	if window != nil {
		params.Set("start_time", window.Start.UTC().Format(time.RFC3339))
		params.Set("end_time", window.End.UTC().Format(time.RFC3339))
	}

	var buckets []domain.VolumeBucket
	err := c.forEachCountsPage(ctx, c.countsURL(endpoint), params, c.bearer(endpoint), target, func(page rawCountsPage) error {
		for _, cnt := range page.Data {
			bucketStart, err := time.Parse(time.RFC3339, cnt.Start)
			if err != nil {
				c.log.Warn().Str("target", target).Str("start", cnt.Start).Msg("twitter: некорректное начало окна объёмов")
				continue
			}
			bucketEnd, err := time.Parse(time.RFC3339, cnt.End)
			if err != nil {
				c.log.Warn().Str("target", target).Str("end", cnt.End).Msg("twitter: некорректный конец окна объёмов")
				continue
			}
			buckets = append(buckets, domain.VolumeBucket{
				Start:      bucketStart.UTC(),
				End:        bucketEnd.UTC(),
				TweetCount: cnt.TweetCount,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buckets, nil
}
