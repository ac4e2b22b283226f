package flagservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
	"github.com/ixdlabs/go-backend-template/internal/backend/repository/appcache"
	"github.com/ixdlabs/go-backend-template/pkg/logger"
)

const (
	prefPrefix    = "feature_flag."
	prefsCacheTTL = time.Minute * 5
)

type PreferenceRepo interface {
	ListPreferences(ctx context.Context) ([]models.Preference, error)
}

// FlagService resolves feature flags. A flag is enabled when it is in
// the static configuration list or when the preference
// "feature_flag.<name>" reads "true". It is supported when the client
// announced it in the X-Feature-Flags header.
type FlagService struct {
	prefs PreferenceRepo
	cache appcache.Cache
	flags map[string]struct{}
	lg    logger.Logger
}

func New(prefs PreferenceRepo, cache appcache.Cache, staticFlags []string, lg logger.Logger) *FlagService {
	flags := make(map[string]struct{}, len(staticFlags))
	for _, f := range staticFlags {
		f = strings.TrimSpace(f)
		if f != "" {
			flags[f] = struct{}{}
		}
	}

	return &FlagService{
		prefs: prefs,
		cache: cache,
		flags: flags,
		lg:    lg,
	}
}

func (fs *FlagService) Enabled(ctx context.Context, flag string) (bool, error) {
	if _, ok := fs.flags[flag]; ok {
		return true, nil
	}

	value, err := fs.preferenceValue(ctx, prefPrefix+flag)
	if err != nil {
		return false, err
	}

	return strings.EqualFold(value, "true"), nil
}

// Supported reports whether the client announced the flag.
func (fs *FlagService) Supported(flag string, supported []string) bool {
	for _, s := range supported {
		if s == flag {
			return true
		}
	}

	return false
}

func (fs *FlagService) EnabledAndSupported(ctx context.Context, flag string, supported []string) (bool, error) {
	if !fs.Supported(flag, supported) {
		return false, nil
	}

	return fs.Enabled(ctx, flag)
}

// Invalidate drops the cached preference table so the next resolution
// sees fresh values. Called after a preference write.
func (fs *FlagService) Invalidate(ctx context.Context) error {
	key := appcache.NewKey().WithBase("preferences")

	if err := fs.cache.Delete(ctx, key.Hash()); err != nil {
		return fmt.Errorf("delete preferences cache error: %w", err)
	}

	return nil
}

// ParseHeader splits the comma separated X-Feature-Flags header value
// into the flags the client supports.
func ParseHeader(header string) []string {
	if header == "" {
		return nil
	}

	parts := strings.Split(header, ",")
	flags := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			flags = append(flags, p)
		}
	}

	return flags
}

func (fs *FlagService) preferenceValue(ctx context.Context, key string) (string, error) {
	prefs, err := fs.preferences(ctx)
	if err != nil {
		return "", err
	}

	value, ok := prefs[key]
	if !ok {
		return "false", nil
	}

	return value, nil
}

// preferences loads the whole preference table, cached briefly since
// flags are consulted on hot paths.
func (fs *FlagService) preferences(ctx context.Context) (map[string]string, error) {
	key := appcache.NewKey().WithBase("preferences")

	var cached map[string]string
	if err := appcache.GetJSON(ctx, fs.cache, key, &cached); err == nil {
		fs.lg.Debug("preferences cache hit")

		return cached, nil
	} else if !errors.Is(err, appcache.ErrMiss) {
		return nil, fmt.Errorf("get preferences cache error: %w", err)
	}

	list, err := fs.prefs.ListPreferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("list preferences error: %w", err)
	}

	prefs := make(map[string]string, len(list))
	for _, p := range list {
		prefs[p.Key] = p.Value
	}

	if err := appcache.SetJSON(ctx, fs.cache, key, prefs, prefsCacheTTL); err != nil {
		fs.lg.Errorf("set preferences cache error: %s", err.Error())
	}

	return prefs, nil
}
