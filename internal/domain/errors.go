package domain

import (
	"errors"
	"fmt"
)

// ErrQueryTooLong возвращается, когда собранный поисковый запрос
// превышает лимит API. Запрос не укорачивается молча: вызывающий
// обязан сократить набор тегов.
var ErrQueryTooLong = errors.New("поисковый запрос длиннее лимита API")

// UpstreamError — ответ API со статусом, отличным от 200 и 429.
// Не ретраится; прерывает прогон текущего тега.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("api ответил статусом %d: %s", e.Status, e.Body)
}

// RateLimitError — исчерпан потолок повторов после серии 429.
type RateLimitError struct {
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("лимит запросов: %d повторов не хватило", e.Attempts)
}

// RecordError — ошибка нормализации одной записи страницы.
// Изолируется: запись пропускается, страница обрабатывается дальше.
type RecordError struct {
	TweetID string
	Reason  string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("запись %s пропущена: %s", e.TweetID, e.Reason)
}
