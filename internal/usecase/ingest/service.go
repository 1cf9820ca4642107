package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"hashtag-ingest/internal/domain"
	"hashtag-ingest/internal/infra/metrics"
)

// Service реализует прогон сбора: выгрузка страниц, сохранение,
// разворачивание ответов и ведение курсора.
type Service struct {
	source       domain.TweetSource
	hashtags     domain.HashtagRepo
	tweets       domain.TweetRepo
	volumes      domain.VolumeRepo
	log          zerolog.Logger
	replyWorkers int
}

// NewService создаёт сервис сбора.
func NewService(source domain.TweetSource, hashtags domain.HashtagRepo, tweets domain.TweetRepo, volumes domain.VolumeRepo, log zerolog.Logger, replyWorkers int) *Service {
	if replyWorkers <= 0 {
		replyWorkers = 4
	}
	return &Service{source: source, hashtags: hashtags, tweets: tweets, volumes: volumes, log: log, replyWorkers: replyWorkers}
}

// RunReport — итог одного прогона по тегу.
type RunReport struct {
	HashtagID  int64
	Pages      int
	Fetched    int
	Inserted   int
	Skipped    int
	Replies    int
	LastID     string
	Volumes    int
	ReplyFails int
}

// Run выполняет задачу сбора по одному тегу.
//
// Страницы обрабатываются последовательно в порядке API: курсор
// пагинации каждой следующей страницы зависит от предыдущей.
// Курсор тега двигается только для standard-класса и только на
// идентификаторы уже сохранённых страниц, поэтому частичный прогон
// безопасен: несохранённый хвост будет перечитан в следующий раз.
func (s *Service) Run(ctx context.Context, job domain.IngestJob) (RunReport, error) {
	tag, err := s.hashtags.GetHashtag(ctx, job.HashtagID)
	if err != nil {
		return RunReport{}, fmt.Errorf("получение хэштега: %w", err)
	}
	if !tag.Enabled {
		return RunReport{HashtagID: tag.ID}, fmt.Errorf("хэштег %q выключен", tag.Name)
	}

	opts := domain.FetchOptions{
		Window:          job.Window(),
		IncludeRetweets: job.IncludeRetweets,
		ExpandReplies:   job.ExpandReplies,
	}
	// Инкрементальный курсор есть только у recent search. Полный
	// архив всегда ходит по явному окну.
	if tag.Endpoint == domain.EndpointStandard {
		opts.SinceID = tag.LastTweetID
	}

	report := RunReport{HashtagID: tag.ID}
	fetchErr := s.source.FetchTweets(ctx, tag, opts, func(page domain.PageResult) error {
		return s.persistPage(ctx, tag, job, page, &report)
	})

	// Страницы до ошибки уже сохранены, курсор на них валиден.
	if tag.Endpoint == domain.EndpointStandard && report.LastID != "" {
		if err := s.hashtags.AdvanceCursor(ctx, tag.ID, report.LastID); err != nil {
			if fetchErr != nil {
				return report, fmt.Errorf("сдвиг курсора: %w (прогон прерван: %v)", err, fetchErr)
			}
			return report, fmt.Errorf("сдвиг курсора: %w", err)
		}
	}
	if fetchErr != nil {
		metrics.IngestErrors.Inc()
		return report, fmt.Errorf("выгрузка по тегу %q: %w", tag.Name, fetchErr)
	}

	if tag.Endpoint == domain.EndpointAcademic {
		if err := s.collectVolumes(ctx, tag, job, &report); err != nil {
			return report, err
		}
	}

	s.log.Info().
		Str("component", "ingest").
		Str("hashtag", tag.Name).
		Int("pages", report.Pages).
		Int("inserted", report.Inserted).
		Int("skipped", report.Skipped).
		Str("last_id", report.LastID).
		Msg("прогон завершён")
	return report, nil
}

func (s *Service) persistPage(ctx context.Context, tag domain.Hashtag, job domain.IngestJob, page domain.PageResult, report *RunReport) error {
	report.Pages++
	report.Fetched += len(page.Tweets)
	report.Skipped += len(page.Skipped)

	inserted, err := s.tweets.SaveTweets(ctx, page.Tweets)
	if err != nil {
		return fmt.Errorf("сохранение записей: %w", err)
	}
	report.Inserted += inserted

	ids := make([]string, 0, len(page.Tweets))
	for _, t := range page.Tweets {
		ids = append(ids, t.TweetID)
	}
	if err := s.tweets.LinkTweetsHashtag(ctx, ids, tag.ID); err != nil {
		return fmt.Errorf("связывание записей с тегом: %w", err)
	}

	if job.ExpandReplies {
		report.Replies += s.expandReplies(ctx, tag, page.Tweets, report)
	}

	// Последняя запись страницы в порядке отдачи API. Курсор в итоге
	// встаёт на последнюю запись последней сохранённой страницы —
	// порядок отдачи recent search мы не пересортировываем.
	if len(page.Tweets) > 0 {
		report.LastID = page.Tweets[len(page.Tweets)-1].TweetID
	}
	return nil
}

// expandReplies разворачивает ветки обсуждений на один уровень вглубь
// ограниченным пулом. Ошибка по отдельной ветке не роняет прогон:
// родительская запись уже сохранена, теряются только её ответы.
func (s *Service) expandReplies(ctx context.Context, tag domain.Hashtag, tweets []domain.Tweet, report *RunReport) int {
	type result struct {
		replies []domain.Reply
		failed  bool
	}
	results := make([]result, len(tweets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.replyWorkers)
	for i, parent := range tweets {
		if parent.ReplyCount == 0 {
			continue
		}
		i, parent := i, parent
		g.Go(func() error {
			replies, err := s.source.FetchReplies(gctx, tag, parent)
			if err != nil {
				metrics.ReplyExpansionErrors.Inc()
				s.log.Warn().
					Str("component", "ingest").
					Str("tweet_id", parent.TweetID).
					Err(err).
					Msg("не удалось развернуть ответы")
				results[i] = result{failed: true}
				return nil
			}
			results[i] = result{replies: replies}
			return nil
		})
	}
	_ = g.Wait()

	var all []domain.Reply
	for _, r := range results {
		if r.failed {
			report.ReplyFails++
		}
		all = append(all, r.replies...)
	}
	if len(all) == 0 {
		return 0
	}
	if err := s.tweets.SaveReplies(ctx, all); err != nil {
		report.ReplyFails++
		s.log.Warn().Str("component", "ingest").Err(err).Msg("не удалось сохранить ответы")
		return 0
	}
	return len(all)
}

func (s *Service) collectVolumes(ctx context.Context, tag domain.Hashtag, job domain.IngestJob, report *RunReport) error {
	buckets, err := s.source.FetchVolumes(ctx, tag, job.Window(), job.IncludeRetweets)
	if err != nil {
		return fmt.Errorf("выгрузка объёмов по тегу %q: %w", tag.Name, err)
	}
	for i := range buckets {
		buckets[i].HashtagID = tag.ID
	}
	if err := s.volumes.SaveVolumes(ctx, buckets); err != nil {
		return fmt.Errorf("сохранение объёмов: %w", err)
	}
	report.Volumes = len(buckets)
	return nil
}

// RunAll прогоняет все включённые теги указанного класса подряд.
// Ошибка одного тега не останавливает остальные.
func (s *Service) RunAll(ctx context.Context, endpoint domain.EndpointClass, window *domain.TimeWindow, expandReplies bool) ([]RunReport, error) {
	tags, err := s.hashtags.ListEnabled(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("список тегов: %w", err)
	}

	var reports []RunReport
	var failed int
	for _, tag := range tags {
		job := domain.IngestJob{
			HashtagID:     tag.ID,
			Endpoint:      endpoint,
			ExpandReplies: expandReplies,
			RequestedAt:   time.Now().UTC(),
			Cause:         domain.IngestCauseManual,
		}
		if window != nil {
			start, end := window.Start, window.End
			job.WindowStart, job.WindowEnd = &start, &end
		}
		report, err := s.Run(ctx, job)
		reports = append(reports, report)
		if err != nil {
			failed++
			s.log.Error().
				Str("component", "ingest").
				Str("hashtag", tag.Name).
				Err(err).
				Msg("прогон тега завершился ошибкой")
		}
	}
	if failed > 0 {
		return reports, fmt.Errorf("%d из %d тегов завершились ошибкой", failed, len(tags))
	}
	return reports, nil
}
