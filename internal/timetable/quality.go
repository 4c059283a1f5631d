package timetable

// ScheduleQuality sums the gap cost of every teacher-day in g. A lone free
// hour between lessons costs 1; a run of n free hours costs 2n. Lower is
// better.
func ScheduleQuality(g *TeacherGrid) int {
	total := 0
	for _, teacher := range g.Teachers() {
		for _, day := range g.calendar.Days {
			total += gapCost(g.DayRow(teacher, day))
		}
	}
	return total
}

// HolesByDay counts, per day, the free hours between the teacher's first
// and last lesson.
func HolesByDay(g *TeacherGrid, teacher string) map[string]int {
	holes := make(map[string]int, len(g.calendar.Days))
	for _, day := range g.calendar.Days {
		holes[day] = countHoles(g.DayRow(teacher, day))
	}
	return holes
}

func span(worked []bool) (first, last int, ok bool) {
	first, last = -1, -1
	for i, w := range worked {
		if !w {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	return first, last, first >= 0 && first != last
}

func countHoles(worked []bool) int {
	first, last, ok := span(worked)
	if !ok {
		return 0
	}
	n := 0
	for i := first; i < last; i++ {
		if !worked[i] {
			n++
		}
	}
	return n
}

func gapCost(worked []bool) int {
	first, last, ok := span(worked)
	if !ok {
		return 0
	}
	cost := 0
	for i := first; i < last; {
		if worked[i] {
			i++
			continue
		}
		run := 0
		for i < last && !worked[i] {
			run++
			i++
		}
		if run > 1 {
			cost += 2 * run
		} else {
			cost++
		}
	}
	return cost
}
