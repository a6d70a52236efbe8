package court

import (
	"fmt"

	"github.com/picklefed/court-reservation/internal/pkg/apperr"
)

// Court ドメインのエラー定義
var (
	ErrCourtNotFound   = fmt.Errorf("コートが見つかりません: %w", apperr.ErrNotFound)
	ErrCourtIDRequired = apperr.NewValidationError("court_id", "コートIDは必須です")
	ErrInvalidRate     = apperr.NewValidationError("rate", "料金は0以上である必要があります")
	ErrInvalidType     = apperr.NewValidationError("type", "コート種別が不正です")
	ErrInvalidTimeZone = apperr.NewValidationError("time_zone", "タイムゾーンが不正です")
)
