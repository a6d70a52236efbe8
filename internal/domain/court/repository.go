package court

import "context"

// Repository はコートの参照を提供する。コートはIDで参照し、複製しない
type Repository interface {
	// GetByID はIDからコートを取得する
	GetByID(ctx context.Context, id string) (*Court, error)

	// ListByClub はクラブのコート一覧を取得する
	ListByClub(ctx context.Context, clubID string) ([]*Court, error)
}
