package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"hashtag-ingest/internal/domain"
)

// ErrBadName возвращается для пустого или слишком короткого имени тега.
var ErrBadName = errors.New("некорректное имя хэштега")

// Service управляет набором отслеживаемых тегов.
type Service struct {
	hashtags domain.HashtagRepo
	log      zerolog.Logger
}

// NewService создаёт сервис источников.
func NewService(hashtags domain.HashtagRepo, log zerolog.Logger) *Service {
	return &Service{hashtags: hashtags, log: log}
}

// ParseName нормализует пользовательский ввод имени тега: срезает
// ведущий «#», пробелы по краям и требует минимум два символа.
func ParseName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	name = strings.TrimPrefix(name, "#")
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < 2 {
		return "", ErrBadName
	}
	if strings.ContainsAny(name, " \t\n") {
		return "", ErrBadName
	}
	return name, nil
}

// Add регистрирует тег для сбора. Повторное добавление той же пары
// (имя, класс) включает существующий тег.
func (s *Service) Add(ctx context.Context, rawName string, endpoint domain.EndpointClass) (domain.Hashtag, error) {
	name, err := ParseName(rawName)
	if err != nil {
		return domain.Hashtag{}, err
	}
	tag, err := s.hashtags.CreateHashtag(ctx, name, endpoint)
	if err != nil {
		return domain.Hashtag{}, fmt.Errorf("создание хэштега: %w", err)
	}
	s.log.Info().Str("component", "sources").Str("hashtag", tag.Name).Str("endpoint", string(tag.Endpoint)).Msg("тег зарегистрирован")
	return tag, nil
}

// Enable включает тег.
func (s *Service) Enable(ctx context.Context, id int64) error {
	return s.hashtags.SetHashtagEnabled(ctx, id, true)
}

// Disable выключает тег, не удаляя собранные данные.
func (s *Service) Disable(ctx context.Context, id int64) error {
	return s.hashtags.SetHashtagEnabled(ctx, id, false)
}

// List возвращает включённые теги класса.
func (s *Service) List(ctx context.Context, endpoint domain.EndpointClass) ([]domain.Hashtag, error) {
	return s.hashtags.ListEnabled(ctx, endpoint)
}
