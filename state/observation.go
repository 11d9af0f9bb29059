package state

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RouteObservation is the most recent route a probe from Src to Dst was seen to take.
// An empty Route means the probe was lost.
type RouteObservation struct {
	Src       NodeId    `yaml:"src"`
	Dst       NodeId    `yaml:"dst"`
	Route     []NodeId  `yaml:"route"`
	Correct   bool      `yaml:"correct"`
	Timestamp time.Time `yaml:"timestamp"`
}

func (o RouteObservation) String() string {
	return fmt.Sprintf("%s -> %s: %v", o.Src, o.Dst, o.Route)
}

// RouteSnapshot is the exported form of every observation at a point in time.
type RouteSnapshot struct {
	RunId      uuid.UUID          `yaml:"runId"`
	TakenAt    time.Time          `yaml:"takenAt"`
	AllCorrect bool               `yaml:"allCorrect"`
	Routes     []RouteObservation `yaml:"routes"`
}
