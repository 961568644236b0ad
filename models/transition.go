package models

import "github.com/homerly/rental_backend/utils"

// transitionTable lists the legal targets of each status.
type transitionTable[S ~string] map[S][]S

func (t transitionTable[S]) allows(current, target S) bool {
	for _, s := range t[current] {
		if s == target {
			return true
		}
	}
	return false
}

// validate returns BadRequest for anything not in the table.
func (t transitionTable[S]) validate(entity string, current, target S) error {
	if _, ok := t[current]; !ok {
		return utils.BadRequestError("%s in status %q cannot change status", entity, current)
	}
	if !t.allows(current, target) {
		return utils.BadRequestError("%s cannot move from %q to %q", entity, current, target)
	}
	return nil
}
