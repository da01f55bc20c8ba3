// Package calendar содержит календарные вычисления для жизненного цикла заказа.
package calendar

import "time"

// IsBusinessDay сообщает, является ли день рабочим (понедельник–пятница).
func IsBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// AddBusinessDays прибавляет к дате n рабочих дней. Начальный день не засчитывается,
// время суток и часовой пояс сохраняются. При n <= 0 дата возвращается без изменений.
func AddBusinessDays(t time.Time, n int) time.Time {
	for n > 0 {
		t = t.AddDate(0, 0, 1)
		if IsBusinessDay(t) {
			n--
		}
	}
	return t
}

// DateOf отбрасывает время суток, оставляя дату в указанном часовом поясе.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntil возвращает количество полных календарных дней от даты now в часовом поясе loc
// до календарной даты target. День target берётся как есть, без перевода в loc.
// Для прошедшей даты результат отрицательный.
func DaysUntil(now, target time.Time, loc *time.Location) int {
	y, m, d := target.Date()
	diff := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Sub(DateOf(now, loc))
	return int(diff.Hours() / 24)
}

// NotBefore сообщает, наступила ли дата deadline к моменту now (сравнение по датам).
func NotBefore(now, deadline time.Time, loc *time.Location) bool {
	return !DateOf(now, loc).Before(DateOf(deadline, loc))
}
