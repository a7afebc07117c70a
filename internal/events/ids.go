package events

import "strconv"

func droneAggregateID(id int) string {
	return "drone-" + strconv.Itoa(id)
}
