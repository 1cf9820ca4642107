package main

import (
	"context"
	"flag"
	"os"
	"time"

	"hashtag-ingest/internal/adapters/export"
	"hashtag-ingest/internal/adapters/repo"
	"hashtag-ingest/internal/infra/config"
	"hashtag-ingest/internal/infra/db"
	applog "hashtag-ingest/internal/infra/log"
)

func main() {
	var (
		fromFlag = flag.String("from", "", "начало окна выгрузки, RFC3339")
		toFlag   = flag.String("to", "", "конец окна выгрузки, RFC3339")
		outFlag  = flag.String("o", "tweets.csv", "путь к файлу выгрузки")
	)
	flag.Parse()

	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	from, err := time.Parse(time.RFC3339, *fromFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("exporter: некорректный -from")
	}
	to, err := time.Parse(time.RFC3339, *toFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("exporter: некорректный -to")
	}
	if !from.Before(to) {
		logger.Fatal().Msg("exporter: -from должен быть раньше -to")
	}

	if cfg.PGDSN == "" {
		logger.Fatal().Msg("exporter: не указан адрес БД (PG_DSN)")
	}
	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("exporter: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	tweets, err := repoAdapter.ListTweetsByCreatedRange(ctx, from, to)
	if err != nil {
		logger.Fatal().Err(err).Msg("exporter: ошибка выборки записей")
	}

	file, err := os.Create(*outFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("exporter: не удалось создать файл")
	}
	defer file.Close()

	if err := export.WriteCSV(file, tweets); err != nil {
		logger.Fatal().Err(err).Msg("exporter: ошибка записи CSV")
	}
	logger.Info().Int("tweets", len(tweets)).Str("file", *outFlag).Msg("exporter: выгрузка завершена")
}
