package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hashtag-ingest/internal/domain"
	"hashtag-ingest/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.HashtagRepo = (*Postgres)(nil)
	_ domain.TweetRepo   = (*Postgres)(nil)
	_ domain.VolumeRepo  = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// CreateHashtag сохраняет тег. Повторное создание той же пары
// (name, endpoint) включает тег заново вместо дубля.
func (p *Postgres) CreateHashtag(ctx context.Context, name string, endpoint domain.EndpointClass) (domain.Hashtag, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var tag domain.Hashtag
	var lastTweetID sql.NullString
	var endpointValue string
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO hashtags (name, endpoint, enabled)
VALUES ($1, $2, true)
ON CONFLICT (name, endpoint) DO UPDATE SET enabled = true
RETURNING id, name, endpoint, enabled, last_tweet_id, created_at
`, name, string(endpoint)).Scan(&tag.ID, &tag.Name, &endpointValue, &tag.Enabled, &lastTweetID, &tag.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "hashtags_upsert", "hashtags", start, err)
	if err != nil {
		return domain.Hashtag{}, err
	}
	tag.Endpoint = domain.EndpointClass(endpointValue)
	if lastTweetID.Valid {
		tag.LastTweetID = lastTweetID.String
	}
	return tag, nil
}

// SetHashtagEnabled включает или выключает тег.
func (p *Postgres) SetHashtagEnabled(ctx context.Context, id int64, enabled bool) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE hashtags SET enabled=$2 WHERE id=$1`, id, enabled)
	metrics.ObserveNetworkRequest("postgres", "hashtags_set_enabled", "hashtags", start, err)
	return err
}

// GetHashtag возвращает тег по идентификатору.
func (p *Postgres) GetHashtag(ctx context.Context, id int64) (domain.Hashtag, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var tag domain.Hashtag
	var lastTweetID sql.NullString
	var endpointValue string
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, name, endpoint, enabled, last_tweet_id, created_at
FROM hashtags WHERE id=$1
`, id).Scan(&tag.ID, &tag.Name, &endpointValue, &tag.Enabled, &lastTweetID, &tag.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "hashtags_get", "hashtags", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Hashtag{}, fmt.Errorf("хэштег %d не найден", id)
	}
	if err != nil {
		return domain.Hashtag{}, err
	}
	tag.Endpoint = domain.EndpointClass(endpointValue)
	if lastTweetID.Valid {
		tag.LastTweetID = lastTweetID.String
	}
	return tag, nil
}

// ListEnabled возвращает включённые теги указанного класса.
func (p *Postgres) ListEnabled(ctx context.Context, endpoint domain.EndpointClass) ([]domain.Hashtag, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, name, endpoint, enabled, last_tweet_id, created_at
FROM hashtags WHERE enabled = true AND endpoint = $1
ORDER BY name
`, string(endpoint))
	metrics.ObserveNetworkRequest("postgres", "hashtags_list_enabled", "hashtags", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []domain.Hashtag
	for rows.Next() {
		var tag domain.Hashtag
		var lastTweetID sql.NullString
		var endpointValue string
		if err := rows.Scan(&tag.ID, &tag.Name, &endpointValue, &tag.Enabled, &lastTweetID, &tag.CreatedAt); err != nil {
			return nil, err
		}
		tag.Endpoint = domain.EndpointClass(endpointValue)
		if lastTweetID.Valid {
			tag.LastTweetID = lastTweetID.String
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// AdvanceCursor записывает последний обработанный идентификатор.
func (p *Postgres) AdvanceCursor(ctx context.Context, hashtagID int64, lastTweetID string) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE hashtags SET last_tweet_id=$2 WHERE id=$1`, hashtagID, lastTweetID)
	metrics.ObserveNetworkRequest("postgres", "hashtags_advance_cursor", "hashtags", start, err)
	return err
}

// SaveTweets сохраняет записи батчем. Конфликт по tweet_id — штатный
// путь идемпотентности: существующая запись не перезаписывается,
// строка пропускается. Возвращает число реально вставленных строк.
func (p *Postgres) SaveTweets(ctx context.Context, tweets []domain.Tweet) (int, error) {
	if len(tweets) == 0 {
		return 0, nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for _, t := range tweets {
		batch.Queue(`
INSERT INTO tweets (
	tweet_id, text, created_at, language, mentions, hashtags, media,
	retweet_count, reply_count, like_count, quote_count,
	author_id, author_username, author_bio, author_name,
	author_followers_count, author_following_count, author_tweet_count,
	reply_to, retweet_of, quoted_tweet
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
ON CONFLICT (tweet_id) DO NOTHING
`, t.TweetID, t.Text, t.CreatedAt, t.Language, t.Mentions, t.Hashtags, t.Media,
			t.RetweetCount, t.ReplyCount, t.LikeCount, t.QuoteCount,
			t.AuthorID, t.AuthorUsername, t.AuthorBio, t.AuthorName,
			t.AuthorFollowersCount, t.AuthorFollowingCount, t.AuthorTweetCount,
			t.ReplyTo, t.RetweetOf, t.QuotedTweet)
	}
	start := time.Now()
	br := p.pool.SendBatch(ctx, batch)
	metrics.ObserveNetworkRequest("postgres", "tweets_send_batch", "tweets", start, nil)
	defer br.Close()

	inserted := 0
	for range tweets {
		start = time.Now()
		tag, err := br.Exec()
		metrics.ObserveNetworkRequest("postgres", "tweets_batch_exec", "tweets", start, err)
		if err != nil {
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// LinkTweetsHashtag создаёт связи (запись, тег) батчем, пропуская
// дубликаты пар.
func (p *Postgres) LinkTweetsHashtag(ctx context.Context, tweetIDs []string, hashtagID int64) error {
	if len(tweetIDs) == 0 {
		return nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for _, tweetID := range tweetIDs {
		batch.Queue(`
INSERT INTO tweet_hashtags (tweet_id, hashtag_id)
VALUES ($1,$2)
ON CONFLICT (tweet_id, hashtag_id) DO NOTHING
`, tweetID, hashtagID)
	}
	start := time.Now()
	br := p.pool.SendBatch(ctx, batch)
	metrics.ObserveNetworkRequest("postgres", "tweet_hashtags_send_batch", "tweet_hashtags", start, nil)
	defer br.Close()
	for range tweetIDs {
		start = time.Now()
		_, err := br.Exec()
		metrics.ObserveNetworkRequest("postgres", "tweet_hashtags_batch_exec", "tweet_hashtags", start, err)
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveReplies сохраняет ответы ветки батчем, пропуская дубликаты.
func (p *Postgres) SaveReplies(ctx context.Context, replies []domain.Reply) error {
	if len(replies) == 0 {
		return nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for _, r := range replies {
		batch.Queue(`
INSERT INTO tweet_replies (parent_tweet_id, reply_tweet_id, text)
VALUES ($1,$2,$3)
ON CONFLICT (parent_tweet_id, reply_tweet_id) DO NOTHING
`, r.ParentTweetID, r.ReplyTweetID, r.Text)
	}
	start := time.Now()
	br := p.pool.SendBatch(ctx, batch)
	metrics.ObserveNetworkRequest("postgres", "tweet_replies_send_batch", "tweet_replies", start, nil)
	defer br.Close()
	for range replies {
		start = time.Now()
		_, err := br.Exec()
		metrics.ObserveNetworkRequest("postgres", "tweet_replies_batch_exec", "tweet_replies", start, err)
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveVolumes сохраняет агрегаты объёмов батчем. Таблица только
// пополняется: дедупликации нет, повторный прогон окна даёт дубли.
func (p *Postgres) SaveVolumes(ctx context.Context, buckets []domain.VolumeBucket) error {
	if len(buckets) == 0 {
		return nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for _, b := range buckets {
		batch.Queue(`
INSERT INTO hashtag_volumes (hashtag_id, window_start, window_end, tweet_count)
VALUES ($1,$2,$3,$4)
`, b.HashtagID, b.Start, b.End, b.TweetCount)
	}
	start := time.Now()
	br := p.pool.SendBatch(ctx, batch)
	metrics.ObserveNetworkRequest("postgres", "hashtag_volumes_send_batch", "hashtag_volumes", start, nil)
	defer br.Close()
	for range buckets {
		start = time.Now()
		_, err := br.Exec()
		metrics.ObserveNetworkRequest("postgres", "hashtag_volumes_batch_exec", "hashtag_volumes", start, err)
		if err != nil {
			return err
		}
	}
	metrics.VolumeBucketsTotal.Add(float64(len(buckets)))
	return nil
}

// ListTweetsByCreatedRange возвращает записи по окну created_at.
func (p *Postgres) ListTweetsByCreatedRange(ctx context.Context, from, to time.Time) ([]domain.Tweet, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, tweet_id, text, created_at, language, mentions, hashtags, media,
       retweet_count, reply_count, like_count, quote_count,
       author_id, author_username, author_bio, author_name,
       author_followers_count, author_following_count, author_tweet_count,
       reply_to, retweet_of, quoted_tweet
FROM tweets
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at
`, from, to)
	metrics.ObserveNetworkRequest("postgres", "tweets_list_by_range", "tweets", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tweets []domain.Tweet
	for rows.Next() {
		var t domain.Tweet
		var replyTo, retweetOf, quoted sql.NullString
		if err := rows.Scan(&t.ID, &t.TweetID, &t.Text, &t.CreatedAt, &t.Language, &t.Mentions, &t.Hashtags, &t.Media,
			&t.RetweetCount, &t.ReplyCount, &t.LikeCount, &t.QuoteCount,
			&t.AuthorID, &t.AuthorUsername, &t.AuthorBio, &t.AuthorName,
			&t.AuthorFollowersCount, &t.AuthorFollowingCount, &t.AuthorTweetCount,
			&replyTo, &retweetOf, &quoted); err != nil {
			return nil, err
		}
		if replyTo.Valid {
			v := replyTo.String
			t.ReplyTo = &v
		}
		if retweetOf.Valid {
			v := retweetOf.String
			t.RetweetOf = &v
		}
		if quoted.Valid {
			v := quoted.String
			t.QuotedTweet = &v
		}
		tweets = append(tweets, t)
	}
	return tweets, rows.Err()
}
