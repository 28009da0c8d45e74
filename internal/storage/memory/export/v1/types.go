// Package v1 contains the v1 JSON export format for a recorded run.
package v1

import "time"

// FormatVersion is written into every export.
const FormatVersion = "missionsim/v1"

// Export is the root JSON structure for v1 format.
type Export struct {
	Format    string    `json:"format"`
	RunUUID   string    `json:"runUuid,omitempty"`
	RunName   string    `json:"runName"`
	Scenario  string    `json:"scenario"`
	StartedAt time.Time `json:"startedAt"`
	StartSec  int       `json:"startSec"`
	EndSec    int       `json:"endSec"`
	EndFrame  int       `json:"endFrame"`
	Teams     []Team    `json:"teams"`
	Entities  []Entity  `json:"entities"`
	Events    [][]any   `json:"events"`
}

// Team lists the entity ids belonging to one team.
type Team struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Members []uint `json:"members"`
}

// Entity is one simulated object. Positions hold [[lat, lon, alt], tick].
type Entity struct {
	ID            uint    `json:"id"`
	ObjectID      string  `json:"objectId"`
	Team          string  `json:"team"`
	Role          string  `json:"role"`
	StartFrameNum int     `json:"startFrameNum"`
	Route         [][]any `json:"route"`
	Positions     [][]any `json:"positions"`
}
