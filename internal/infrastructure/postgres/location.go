package postgres

import (
	"fmt"
	"sync"
	"time"
)

var locations sync.Map

// loadLocation は IANA のタイムゾーン名を読み込む。読み込み結果は使い回す
func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	if loc, ok := locations.Load(name); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("タイムゾーンの読み込みに失敗: %q: %w", name, err)
	}
	locations.Store(name, loc)
	return loc, nil
}

// zoneName は保存するタイムゾーン名を返す。nil はUTC
func zoneName(loc *time.Location) string {
	if loc == nil {
		return "UTC"
	}
	return loc.String()
}
