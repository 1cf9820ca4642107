package sources

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"hashtag-ingest/internal/domain"
)

func TestParseName(t *testing.T) {
	cases := []struct {
		in   string
		want string
		err  bool
	}{
		{in: "#radiology", want: "radiology"},
		{in: "  #radiomics  ", want: "radiomics"},
		{in: "radiology", want: "radiology"},
		{in: "# ", err: true},
		{in: "#a", err: true},
		{in: "", err: true},
		{in: "#two words", err: true},
	}
	for _, tc := range cases {
		got, err := ParseName(tc.in)
		if tc.err {
			if !errors.Is(err, ErrBadName) {
				t.Fatalf("%q: ожидали ErrBadName, получили %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: не ожидали ошибку: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%q: ожидали %q, получили %q", tc.in, tc.want, got)
		}
	}
}

type stubHashtags struct {
	created  []string
	enabled  map[int64]bool
	listTags []domain.Hashtag
}

func (s *stubHashtags) CreateHashtag(_ context.Context, name string, endpoint domain.EndpointClass) (domain.Hashtag, error) {
	s.created = append(s.created, name)
	return domain.Hashtag{ID: int64(len(s.created)), Name: name, Enabled: true, Endpoint: endpoint}, nil
}
func (s *stubHashtags) SetHashtagEnabled(_ context.Context, id int64, enabled bool) error {
	if s.enabled == nil {
		s.enabled = map[int64]bool{}
	}
	s.enabled[id] = enabled
	return nil
}
func (s *stubHashtags) GetHashtag(context.Context, int64) (domain.Hashtag, error) {
	return domain.Hashtag{}, nil
}
func (s *stubHashtags) ListEnabled(context.Context, domain.EndpointClass) ([]domain.Hashtag, error) {
	return s.listTags, nil
}
func (s *stubHashtags) AdvanceCursor(context.Context, int64, string) error { return nil }

func TestAddStripsHash(t *testing.T) {
	repo := &stubHashtags{}
	service := NewService(repo, zerolog.Nop())

	tag, err := service.Add(context.Background(), "#radiology", domain.EndpointStandard)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if tag.Name != "radiology" {
		t.Fatalf("ожидали radiology, получили %s", tag.Name)
	}
	if len(repo.created) != 1 || repo.created[0] != "radiology" {
		t.Fatalf("в репозиторий должно уйти имя без решётки")
	}
}

func TestAddRejectsBadName(t *testing.T) {
	service := NewService(&stubHashtags{}, zerolog.Nop())
	if _, err := service.Add(context.Background(), "#", domain.EndpointStandard); !errors.Is(err, ErrBadName) {
		t.Fatalf("ожидали ErrBadName, получили %v", err)
	}
}

func TestEnableDisable(t *testing.T) {
	repo := &stubHashtags{}
	service := NewService(repo, zerolog.Nop())

	if err := service.Enable(context.Background(), 3); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := service.Disable(context.Background(), 4); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !repo.enabled[3] || repo.enabled[4] {
		t.Fatalf("переключение флага не дошло до репозитория")
	}
}
