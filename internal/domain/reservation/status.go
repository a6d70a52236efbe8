package reservation

// Status は予約の状態を表す
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// Statuses は全状態
var Statuses = []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow}

// BlockingStatuses は枠を占有する状態
var BlockingStatuses = []Status{StatusPending, StatusConfirmed, StatusCompleted}

// Valid は定義済みの状態かを返す
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Blocking は枠を占有する状態かを返す
func (s Status) Blocking() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusCompleted
}

// Terminal は終端状態かを返す
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Event は状態遷移を起こすイベント
type Event string

const (
	EventConfirmPayment Event = "confirm_payment"
	EventCancel         Event = "cancel"
	EventCheckIn        Event = "check_in"
	EventComplete       Event = "complete"
	EventNoShow         Event = "no_show"
)

// 遷移表。ここにない組み合わせは全て不正
var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventConfirmPayment: StatusConfirmed,
		EventCancel:         StatusCancelled,
	},
	StatusConfirmed: {
		EventCancel:   StatusCancelled,
		EventCheckIn:  StatusConfirmed,
		EventComplete: StatusCompleted,
		EventNoShow:   StatusNoShow,
	},
}

// Transition は from に ev を適用した遷移先を返す
func Transition(from Status, ev Event) (Status, bool) {
	to, ok := transitions[from][ev]
	return to, ok
}
