package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	domainproperty "staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

type propertyFixture struct {
	ID           string   `json:"id"`
	OwnerID      string   `json:"owner_id"`
	Title        string   `json:"title"`
	Inactive     bool     `json:"inactive"`
	BlockedDates []string `json:"blocked_dates"`
	Photos       []string `json:"photos"`
}

// loadPropertyFixtures seeds properties from a JSON file. Properties that
// already exist are left untouched, so restarts against Mongo are safe.
func (a *application) loadPropertyFixtures(ctx context.Context, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			a.logger.Info("property fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []propertyFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	now := time.Now().UTC()
	imported := 0
	for _, fx := range fixtures {
		if _, err := a.properties.ByID(ctx, domainproperty.ID(fx.ID)); err == nil {
			continue
		} else if !errors.Is(err, domainproperty.ErrNotFound) {
			return err
		}
		prop, err := domainproperty.New(domainproperty.CreateParams{
			ID:      domainproperty.ID(fx.ID),
			OwnerID: fx.OwnerID,
			Title:   fx.Title,
			Active:  !fx.Inactive,
			Now:     now,
		})
		if err != nil {
			a.logger.Error("fixture invalid", "property_id", fx.ID, "error", err)
			continue
		}
		if days := parseFixtureDays(fx.BlockedDates); len(days) > 0 {
			if _, err := prop.Block(days, now); err != nil {
				a.logger.Error("fixture blocked dates rejected", "property_id", fx.ID, "error", err)
				continue
			}
		}
		prop.Photos = append(prop.Photos, fx.Photos...)
		if err := a.properties.Save(ctx, prop); err != nil {
			a.logger.Error("cannot store fixture property", "property_id", fx.ID, "error", err)
			continue
		}
		imported++
	}
	a.logger.Info("property fixtures imported", "path", path, "count", imported)
	return nil
}

func parseFixtureDays(raw []string) []time.Time {
	days := make([]time.Time, 0, len(raw))
	for _, r := range raw {
		if day, err := daterange.ParseDay(r); err == nil {
			days = append(days, day)
		}
	}
	return days
}
