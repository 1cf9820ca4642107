package domain

import "time"

// EndpointClass — класс поискового эндпоинта удалённого API.
type EndpointClass string

const (
	// EndpointStandard — recent search, доступен по обычному токену.
	EndpointStandard EndpointClass = "standard"
	// EndpointAcademic — полный архив, требует академический токен
	// и всегда запускается с явным окном времени.
	EndpointAcademic EndpointClass = "academic"
)

// Hashtag — отслеживаемый поисковый тег.
// Пара (Name, Endpoint) уникальна; курсор LastTweetID ведётся
// только для standard-класса.
type Hashtag struct {
	ID          int64
	Name        string
	Enabled     bool
	Endpoint    EndpointClass
	LastTweetID string
	CreatedAt   time.Time
}

// Tweet — нормализованная плоская запись одного поста.
// TweetID хранится строкой: числовые идентификаторы API не влезают
// в float и теряют точность при перекодировании.
type Tweet struct {
	ID        int64
	TweetID   string
	Text      string
	CreatedAt time.Time
	Language  string

	// Списки склеены запятой, как отдаёт экспорт.
	Mentions string
	Hashtags string
	Media    string

	RetweetCount int
	ReplyCount   int
	LikeCount    int
	QuoteCount   int

	AuthorID       string
	AuthorUsername string
	AuthorBio      string
	AuthorName     string

	AuthorFollowersCount int
	AuthorFollowingCount int
	AuthorTweetCount     int

	ReplyTo     *string
	RetweetOf   *string
	QuotedTweet *string
}

// Reply — облегчённая запись ответа из ветки обсуждения.
// Ответы не разворачиваются рекурсивно: ровно один уровень вглубь.
type Reply struct {
	ParentTweetID string
	ReplyTweetID  string
	Text          string
}

// VolumeBucket — количество постов по тегу за окно времени.
// Строки только добавляются, дедупликации нет: объёмы — справочный
// агрегат, повторный прогон окна даёт дубли по построению.
type VolumeBucket struct {
	HashtagID  int64
	Start      time.Time
	End        time.Time
	TweetCount int
}

// TimeWindow — явное окно start/end поискового запроса.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}
