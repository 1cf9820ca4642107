package domain

import (
	"context"
	"time"
)

// FetchOptions управляют одним прогоном поиска по тегу.
type FetchOptions struct {
	Window          *TimeWindow
	IncludeRetweets bool
	SinceID         string
	ExpandReplies   bool
}

// PageResult — результат нормализации одной страницы API:
// плоские записи в порядке страницы плюс пропущенные записи.
type PageResult struct {
	Tweets  []Tweet
	Skipped []*RecordError
}

// TweetSource выгружает нормализованные записи из удалённого API.
// FetchTweets вызывает fn на каждую страницу по мере пагинации;
// ошибка из fn останавливает обход.
type TweetSource interface {
	FetchTweets(ctx context.Context, tag Hashtag, opts FetchOptions, fn func(page PageResult) error) error
	FetchReplies(ctx context.Context, tag Hashtag, parent Tweet) ([]Reply, error)
	// FetchVolumes считает объёмы тем же запросом, что и выгрузка:
	// флаг ретвитов обязан совпадать с флагом прогона.
	FetchVolumes(ctx context.Context, tag Hashtag, window *TimeWindow, includeRetweets bool) ([]VolumeBucket, error)
}

// HashtagRepo управляет источниками-хэштегами и их курсорами.
type HashtagRepo interface {
	CreateHashtag(ctx context.Context, name string, endpoint EndpointClass) (Hashtag, error)
	SetHashtagEnabled(ctx context.Context, id int64, enabled bool) error
	GetHashtag(ctx context.Context, id int64) (Hashtag, error)
	ListEnabled(ctx context.Context, endpoint EndpointClass) ([]Hashtag, error)
	// AdvanceCursor записывает последний обработанный идентификатор.
	// Вызывается только для standard-класса и только после того,
	// как соответствующие записи сохранены.
	AdvanceCursor(ctx context.Context, hashtagID int64, lastTweetID string) error
}

// TweetRepo — персистентность нормализованных записей.
// Повторное сохранение того же tweet_id — no-op, первая запись
// побеждает.
type TweetRepo interface {
	// SaveTweets сохраняет батч, пропуская конфликты по tweet_id.
	// Возвращает число реально вставленных строк.
	SaveTweets(ctx context.Context, tweets []Tweet) (int, error)
	// LinkTweetsHashtag создаёт связи (запись, тег), дубликаты пар
	// игнорируются.
	LinkTweetsHashtag(ctx context.Context, tweetIDs []string, hashtagID int64) error
	SaveReplies(ctx context.Context, replies []Reply) error
	ListTweetsByCreatedRange(ctx context.Context, from, to time.Time) ([]Tweet, error)
}

// VolumeRepo сохраняет агрегаты объёмов.
type VolumeRepo interface {
	SaveVolumes(ctx context.Context, buckets []VolumeBucket) error
}

// CooldownGate — общий «стоп-кран» после 429. Trip взводит паузу,
// Wait блокирует всех вызывающих до её окончания, чтобы пауза
// одного воркера соблюдалась остальными.
type CooldownGate interface {
	Wait(ctx context.Context) error
	Trip(ctx context.Context, d time.Duration) error
}
