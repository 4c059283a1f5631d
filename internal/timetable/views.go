package timetable

// ClassLesson is what a class has in one slot.
type ClassLesson struct {
	Teacher string `json:"teacher"`
	Subject string `json:"subject"`
}

// TeacherView maps teacher to the lessons they hold. Free slots are absent.
type TeacherView map[string]map[TimeSlot]Lesson

// ClassView maps class to its lessons. Free slots are absent.
type ClassView map[string]map[TimeSlot]ClassLesson

// TeacherViewOf projects s by teacher.
func TeacherViewOf(s *Schedule) TeacherView {
	view := make(TeacherView)
	s.Query(nil)(func(slot TimeSlot, p Placement) bool {
		row, ok := view[p.Teacher]
		if !ok {
			row = make(map[TimeSlot]Lesson)
			view[p.Teacher] = row
		}
		row[slot] = Lesson{Class: p.Class, Subject: p.Subject}
		return true
	})
	return view
}

// ClassViewOf projects s by class.
func ClassViewOf(s *Schedule) ClassView {
	view := make(ClassView)
	s.Query(nil)(func(slot TimeSlot, p Placement) bool {
		row, ok := view[p.Class]
		if !ok {
			row = make(map[TimeSlot]ClassLesson)
			view[p.Class] = row
		}
		row[slot] = ClassLesson{Teacher: p.Teacher, Subject: p.Subject}
		return true
	})
	return view
}
