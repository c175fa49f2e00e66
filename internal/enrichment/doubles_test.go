package enrichment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/mock"

	"github.com/CondeArmand/gamemate-backend/internal/catalog"
	"github.com/CondeArmand/gamemate-backend/internal/models"
	"github.com/CondeArmand/gamemate-backend/internal/providers/igdb"
	"github.com/CondeArmand/gamemate-backend/internal/providers/steam"
)

// memStore follows the SmartUpsert contract: match on either id, update
// provided fields, ids are write-once.
type memStore struct {
	mu      sync.Mutex
	games   map[uuid.UUID]*models.Game
	now     func() time.Time
	upserts int
	findErr error
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{games: map[uuid.UUID]*models.Game{}, now: now}
}

func (s *memStore) FindBySteamAppID(ctx context.Context, appID string) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, g := range s.games {
		if g.SteamAppID != nil && *g.SteamAppID == appID {
			cp := *g
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("find %s: %w", appID, catalog.ErrNotFound)
}

func (s *memStore) FindByIGDBID(ctx context.Context, id string) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.games {
		if g.IGDBID != nil && *g.IGDBID == id {
			cp := *g
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("find igdb %s: %w", id, catalog.ErrNotFound)
}

func (s *memStore) SmartUpsert(ctx context.Context, in *models.GameInput) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++

	var target *models.Game
	for _, g := range s.games {
		if (in.SteamAppID != nil && g.SteamAppID != nil && *g.SteamAppID == *in.SteamAppID) ||
			(in.IGDBID != nil && g.IGDBID != nil && *g.IGDBID == *in.IGDBID) {
			target = g
			break
		}
	}
	if target == nil {
		target = &models.Game{ID: uuid.New(), CreatedAt: s.now()}
		s.games[target.ID] = target
	}
	if target.SteamAppID == nil {
		target.SteamAppID = in.SteamAppID
	}
	if target.IGDBID == nil {
		target.IGDBID = in.IGDBID
	}
	if in.Name != "" {
		target.Name = in.Name
	}
	if in.Summary != nil {
		target.Summary = in.Summary
	}
	if in.Rating != nil {
		target.Rating = in.Rating
	}
	if in.ReleaseDate != nil {
		target.ReleaseDate = in.ReleaseDate
	}
	if in.CoverURL != nil {
		target.CoverURL = in.CoverURL
	}
	setList(&target.Genres, in.Genres)
	setList(&target.Platforms, in.Platforms)
	setList(&target.Developers, in.Developers)
	setList(&target.Publishers, in.Publishers)
	setList(&target.Screenshots, in.Screenshots)
	target.UpdatedAt = s.now()

	cp := *target
	return &cp, nil
}

func setList(dst *pq.StringArray, v []string) {
	if v != nil {
		*dst = catalog.Dedupe(v)
	}
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}

func (s *memStore) only() *models.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.games {
		cp := *g
		return &cp
	}
	return nil
}

func (s *memStore) age(appID string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.games {
		if g.SteamAppID != nil && *g.SteamAppID == appID {
			g.UpdatedAt = s.now().Add(-d)
		}
	}
}

type ownKey struct {
	user string
	game uuid.UUID
}

type memOwnership struct {
	mu    sync.Mutex
	rows  map[ownKey]int
	calls int
	err   error
}

func newMemOwnership() *memOwnership {
	return &memOwnership{rows: map[ownKey]int{}}
}

func (o *memOwnership) Upsert(ctx context.Context, userID string, gameID uuid.UUID, playtime int, source models.Provider) (*models.OwnedGame, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	o.rows[ownKey{userID, gameID}] = playtime
	return &models.OwnedGame{UserID: userID, GameID: gameID, PlaytimeMinutes: playtime, SourceProvider: source}, nil
}

func (o *memOwnership) playtime(userID string, gameID uuid.UUID) (int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.rows[ownKey{userID, gameID}]
	return v, ok
}

type mockDetails struct{ mock.Mock }

func (m *mockDetails) GetAppDetails(ctx context.Context, appID string) (*steam.AppDetails, error) {
	args := m.Called(appID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*steam.AppDetails), args.Error(1)
}

type mockIndex struct{ mock.Mock }

func (m *mockIndex) SearchByName(ctx context.Context, text string) ([]igdb.Game, error) {
	args := m.Called(text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]igdb.Game), args.Error(1)
}

func (m *mockIndex) GetByID(ctx context.Context, id string) (*igdb.Game, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*igdb.Game), args.Error(1)
}

func (m *mockIndex) GetBySteamAppID(ctx context.Context, appID string) (*igdb.Game, error) {
	args := m.Called(appID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*igdb.Game), args.Error(1)
}

type mockArt struct{ mock.Mock }

func (m *mockArt) GetCoverBySteamAppID(ctx context.Context, appID string) (string, error) {
	args := m.Called(appID)
	return args.String(0), args.Error(1)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []map[string]interface{}
}

func (n *recordingNotifier) Broadcast(event string, data interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if event == EventComplete {
		n.events = append(n.events, data.(map[string]interface{}))
	}
}

func (n *recordingNotifier) outcomes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e["outcome"].(string)
	}
	return out
}
