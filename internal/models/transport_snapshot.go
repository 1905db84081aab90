package models

import "time"

// TransportSnapshot is the last known host-sync transport state of a song session.
// There is ONE row per song.
type TransportSnapshot struct {
	SongID         uint      `gorm:"primaryKey" json:"song_id"`
	State          string    `gorm:"size:20" json:"state"`
	Reason         string    `gorm:"size:20" json:"reason"`
	HostPositionMs int64     `json:"host_position_ms"`
	UpdatedAt      time.Time `json:"last_heartbeat"` // To check if the state is stale
}

// TableName overrides the default pluralization
func (TransportSnapshot) TableName() string {
	return "transport_state"
}
