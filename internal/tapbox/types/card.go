package types

// CardRecord is one registry entry: the feedback profile of a tag.
type CardRecord struct {
	ID        TagID     `json:"uid"`
	Color     RGB       `json:"color"`
	Animation Animation `json:"animation"`
}

type AccessStatus string

const (
	StatusAllowed AccessStatus = "allowed"
	StatusUnknown AccessStatus = "unknown"
)

// ActivityRecord is one line of the activity log.
type ActivityRecord struct {
	Time   string       `json:"time"`
	ID     TagID        `json:"uid"`
	Status AccessStatus `json:"status"`
}

// UnknownTime is recorded while the wall clock has not been synced.
const UnknownTime = "unknown"

// ActivityTimeLayout is the timestamp format of activity records.
const ActivityTimeLayout = "2006-01-02 15:04:05"
