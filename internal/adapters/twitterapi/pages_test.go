package twitterapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hashtag-ingest/internal/domain"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(Config{
		BaseURL:           server.URL,
		BearerStandard:    "standard-token",
		BearerAcademic:    "academic-token",
		MaxResults:        10,
		RateLimitCooldown: 10 * time.Millisecond,
		RateLimitRetries:  2,
		RequestInterval:   time.Millisecond,
	}, NewMemoryCooldown(), zerolog.Nop())
	return client, server
}

func standardHashtag() domain.Hashtag {
	return domain.Hashtag{ID: 1, Name: "radiology", Enabled: true, Endpoint: domain.EndpointStandard}
}

func pageBody(ids []string, nextToken string) string {
	data := ""
	for i, id := range ids {
		if i > 0 {
			data += ","
		}
		data += fmt.Sprintf(`{"id":%q,"text":"t","created_at":"2023-05-01T12:00:00Z","author_id":"42"}`, id)
	}
	meta := `{"result_count":` + fmt.Sprint(len(ids)) + `}`
	if nextToken != "" {
		meta = fmt.Sprintf(`{"next_token":%q,"result_count":%d}`, nextToken, len(ids))
	}
	return fmt.Sprintf(`{"data":[%s],"includes":{"users":[{"id":"42","username":"alice"}]},"meta":%s}`, data, meta)
}

func TestFetchTweetsPagination(t *testing.T) {
	var requests []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Query().Get("next_token"))
		if r.URL.Path != "/tweets/search/recent" {
			t.Errorf("неожиданный путь: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer standard-token" {
			t.Errorf("неожиданный токен: %s", got)
		}
		switch len(requests) {
		case 1:
			fmt.Fprint(w, pageBody([]string{"1003", "1002"}, "tok1"))
		default:
			fmt.Fprint(w, pageBody([]string{"1001"}, ""))
		}
	})
	client, _ := testClient(t, handler)

	var ids []string
	err := client.FetchTweets(context.Background(), standardHashtag(), domain.FetchOptions{}, func(page domain.PageResult) error {
		for _, tw := range page.Tweets {
			ids = append(ids, tw.TweetID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(requests) != 2 {
		t.Fatalf("ожидали 2 запроса, получили %d", len(requests))
	}
	if requests[1] != "tok1" {
		t.Fatalf("next_token должен переноситься в следующий запрос, получили %q", requests[1])
	}
	if len(ids) != 3 || ids[0] != "1003" || ids[2] != "1001" {
		t.Fatalf("неожиданный порядок записей: %v", ids)
	}
}

func TestFetchTweetsSinceID(t *testing.T) {
	var gotSinceID, gotQuery string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSinceID = r.URL.Query().Get("since_id")
		gotQuery = r.URL.Query().Get("query")
		fmt.Fprint(w, pageBody(nil, ""))
	})
	client, _ := testClient(t, handler)

	err := client.FetchTweets(context.Background(), standardHashtag(), domain.FetchOptions{SinceID: "900"}, func(domain.PageResult) error {
		return nil
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if gotSinceID != "900" {
		t.Fatalf("ожидали since_id=900, получили %q", gotSinceID)
	}
	if gotQuery != "-is:retweet #radiology" {
		t.Fatalf("since_id не должен попадать в query, получили %q", gotQuery)
	}
}

func TestFetchTweetsRateLimitRecovery(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, pageBody([]string{"1001"}, ""))
	})
	client, _ := testClient(t, handler)

	var total int
	err := client.FetchTweets(context.Background(), standardHashtag(), domain.FetchOptions{}, func(page domain.PageResult) error {
		total += len(page.Tweets)
		return nil
	})
	if err != nil {
		t.Fatalf("после паузы запрос должен пройти: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("ожидали 3 запроса, получили %d", calls.Load())
	}
	if total != 1 {
		t.Fatalf("ожидали 1 запись, получили %d", total)
	}
}

func TestFetchTweetsRateLimitCeiling(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	client, _ := testClient(t, handler)

	err := client.FetchTweets(context.Background(), standardHashtag(), domain.FetchOptions{}, func(domain.PageResult) error {
		return nil
	})
	var rateErr *domain.RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("ожидали RateLimitError, получили %v", err)
	}
	if rateErr.Attempts != 2 {
		t.Fatalf("ожидали 2 израсходованных повтора, получили %d", rateErr.Attempts)
	}
}

func TestFetchTweetsUpstreamError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"title":"Forbidden"}`)
	})
	client, _ := testClient(t, handler)

	err := client.FetchTweets(context.Background(), standardHashtag(), domain.FetchOptions{}, func(domain.PageResult) error {
		return nil
	})
	var upstreamErr *domain.UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("ожидали UpstreamError, получили %v", err)
	}
	if upstreamErr.Status != http.StatusForbidden {
		t.Fatalf("ожидали статус 403, получили %d", upstreamErr.Status)
	}
}

func TestFetchTweetsAcademicEndpoint(t *testing.T) {
	var gotPath, gotAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, pageBody(nil, ""))
	})
	client, _ := testClient(t, handler)

	tag := standardHashtag()
	tag.Endpoint = domain.EndpointAcademic
	err := client.FetchTweets(context.Background(), tag, domain.FetchOptions{}, func(domain.PageResult) error {
		return nil
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if gotPath != "/tweets/search/all" {
		t.Fatalf("academic должен ходить в полный архив, получили %s", gotPath)
	}
	if gotAuth != "Bearer academic-token" {
		t.Fatalf("academic должен использовать свой токен, получили %s", gotAuth)
	}
}

func TestFetchReplies(t *testing.T) {
	var gotQuery string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		fmt.Fprint(w, `{"data":[{"id":"3001","text":"ответ"}],"meta":{"result_count":1}}`)
	})
	client, _ := testClient(t, handler)

	parent := domain.Tweet{TweetID: "1001", AuthorUsername: "alice"}
	replies, err := client.FetchReplies(context.Background(), standardHashtag(), parent)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if gotQuery != "conversation_id:1001 to:alice" {
		t.Fatalf("неожиданный запрос ветки: %q", gotQuery)
	}
	if len(replies) != 1 || replies[0].ParentTweetID != "1001" || replies[0].ReplyTweetID != "3001" {
		t.Fatalf("неожиданные ответы: %+v", replies)
	}
}

func TestFetchVolumes(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tweets/counts/recent" {
			t.Errorf("неожиданный путь: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"data":[{"start":"2023-05-01T00:00:00Z","end":"2023-05-01T01:00:00Z","tweet_count":12}],"meta":{}}`)
	})
	client, _ := testClient(t, handler)

	buckets, err := client.FetchVolumes(context.Background(), standardHashtag(), nil, false)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(buckets) != 1 || buckets[0].TweetCount != 12 {
		t.Fatalf("неожиданные бакеты: %+v", buckets)
	}
	if !buckets[0].Start.Equal(time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("неожиданное начало окна: %v", buckets[0].Start)
	}
}

func TestFetchVolumesRetweetFlag(t *testing.T) {
	var gotQuery string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		fmt.Fprint(w, `{"data":[],"meta":{}}`)
	})
	client, _ := testClient(t, handler)

	if _, err := client.FetchVolumes(context.Background(), standardHashtag(), nil, false); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if gotQuery != "-is:retweet #radiology" {
		t.Fatalf("без ретвитов объёмы считаются тем же запросом, что и выгрузка: %q", gotQuery)
	}

	if _, err := client.FetchVolumes(context.Background(), standardHashtag(), nil, true); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if gotQuery != "#radiology" {
		t.Fatalf("с ретвитами фильтр должен исчезнуть из запроса объёмов: %q", gotQuery)
	}
}

func TestFetchCombinedVolumes(t *testing.T) {
	var gotQuery, gotPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"data":[{"start":"2023-05-01T00:00:00Z","end":"2023-05-01T01:00:00Z","tweet_count":5}],"meta":{}}`)
	})
	client, _ := testClient(t, handler)

	buckets, err := client.FetchCombinedVolumes(context.Background(), domain.EndpointAcademic, []string{"radiology", "radiomics"}, nil, false)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if gotQuery != "-is:retweet (#radiology OR #radiomics)" {
		t.Fatalf("неожиданный комбинированный запрос: %q", gotQuery)
	}
	if gotPath != "/tweets/counts/all" {
		t.Fatalf("academic должен ходить в полный архив объёмов, получили %s", gotPath)
	}
	if len(buckets) != 1 || buckets[0].TweetCount != 5 {
		t.Fatalf("неожиданные бакеты: %+v", buckets)
	}
	if buckets[0].HashtagID != 0 {
		t.Fatalf("комбинированные бакеты не атрибуцируются по тегу: %+v", buckets[0])
	}
}

func TestMemoryCooldownLongerPauseWins(t *testing.T) {
	gate := NewMemoryCooldown()
	if err := gate.Trip(context.Background(), 50*time.Millisecond); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := gate.Trip(context.Background(), 5*time.Millisecond); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	started := time.Now()
	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if elapsed := time.Since(started); elapsed < 40*time.Millisecond {
		t.Fatalf("короткая пауза не должна сбрасывать длинную, подождали %v", elapsed)
	}
}

func TestMemoryCooldownWaitCancel(t *testing.T) {
	gate := NewMemoryCooldown()
	if err := gate.Trip(context.Background(), time.Minute); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := gate.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ожидали DeadlineExceeded, получили %v", err)
	}
}
