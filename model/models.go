package model

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&Role{},
		&User{},
		&Session{},
		&Client{},
		&ClientCode{},
		&Professional{},
		&WorkingHour{},
		&ScheduleException{},
		&Treatment{},
		&MedicalCondition{},
		&Appointment{},
		&Review{},
		&SecurityLog{},
	}
}
