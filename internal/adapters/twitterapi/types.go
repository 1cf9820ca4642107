package twitterapi

// Сырые формы ответов поискового API v2. Страница денормализована:
// медиа и авторы приходят отдельной секцией includes и связываются
// с записями по непрозрачным ключам.

type rawPage struct {
	Data     []rawTweet  `json:"data"`
	Includes rawIncludes `json:"includes"`
	Meta     rawMeta     `json:"meta"`
}

type rawIncludes struct {
	Media []rawMedia `json:"media"`
	Users []rawUser  `json:"users"`
}

type rawMeta struct {
	NextToken   string `json:"next_token"`
	ResultCount int    `json:"result_count"`
}

type rawTweet struct {
	ID               string          `json:"id"`
	Text             string          `json:"text"`
	CreatedAt        string          `json:"created_at"`
	Lang             string          `json:"lang"`
	AuthorID         string          `json:"author_id"`
	PublicMetrics    rawTweetMetrics `json:"public_metrics"`
	ReferencedTweets []rawReference  `json:"referenced_tweets"`
	Entities         rawEntities     `json:"entities"`
	Attachments      rawAttachments  `json:"attachments"`
}

type rawTweetMetrics struct {
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
	LikeCount    int `json:"like_count"`
	QuoteCount   int `json:"quote_count"`
}

type rawReference struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type rawEntities struct {
	Hashtags []rawTag     `json:"hashtags"`
	Mentions []rawMention `json:"mentions"`
}

type rawTag struct {
	Tag string `json:"tag"`
}

type rawMention struct {
	Username string `json:"username"`
}

type rawAttachments struct {
	MediaKeys []string `json:"media_keys"`
}

type rawMedia struct {
	MediaKey string `json:"media_key"`
	URL      string `json:"url"`
}

type rawUser struct {
	ID            string         `json:"id"`
	Username      string         `json:"username"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	PublicMetrics rawUserMetrics `json:"public_metrics"`
}

type rawUserMetrics struct {
	FollowersCount int `json:"followers_count"`
	FollowingCount int `json:"following_count"`
	TweetCount     int `json:"tweet_count"`
}

type rawCountsPage struct {
	Data []rawCount `json:"data"`
	Meta rawMeta    `json:"meta"`
}

type rawCount struct {
	Start      string `json:"start"`
	End        string `json:"end"`
	TweetCount int    `json:"tweet_count"`
}
