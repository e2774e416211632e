package schedule

import (
	"encoding/json"
	"fmt"
	"time"
)

// ValidationError 排期文档校验失败
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid schedule document: %s", e.Reason)
}

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// 允许的星期键（ISO 周序，小写英文）
var daysOfWeek = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

func isWeekday(name string) bool {
	for _, d := range daysOfWeek {
		if d == name {
			return true
		}
	}
	return false
}

// weekdayName 将 time.Weekday 转为排期文档使用的小写名称
func weekdayName(d time.Weekday) string {
	switch d {
	case time.Monday:
		return "monday"
	case time.Tuesday:
		return "tuesday"
	case time.Wednesday:
		return "wednesday"
	case time.Thursday:
		return "thursday"
	case time.Friday:
		return "friday"
	case time.Saturday:
		return "saturday"
	}
	return "sunday"
}

// period 一天内的时间段，以当日秒数表示，边界均包含
type period struct {
	start int
	end   int
}

// OneWeekSchedule 按周循环的排期掩码
// 文档形如：
//
//	{
//	  "schedule_type": "week",
//	  "periods": {
//	      "monday": [["08:00", "12:00"], ["13:00", "17:30"]],
//	      "wednesday": [["08:00", "12:00"]]
//	  },
//	  "timezone": "Africa/Nairobi"
//	}
//
// 仅支持当日内的时间段（不跨夜）
type OneWeekSchedule struct {
	periods  map[string][]period
	location *time.Location
}

// NewOneWeekSchedule 解析并校验排期文档
// doc 为空（nil/{}/null）视为空排期；timezone 缺省为进程本地时区
func NewOneWeekSchedule(doc json.RawMessage) (*OneWeekSchedule, error) {
	s := &OneWeekSchedule{
		periods:  map[string][]period{},
		location: time.Local,
	}

	if len(doc) == 0 || string(doc) == "null" {
		return s, nil
	}

	// 先以原始键值解码，拒绝未知顶层键
	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc, &top); err != nil {
		return nil, validationErrorf("not a JSON object: %v", err)
	}

	for key := range top {
		switch key {
		case "schedule_type", "periods", "timezone":
		default:
			return nil, validationErrorf("unknown key %q", key)
		}
	}

	if raw, ok := top["schedule_type"]; ok {
		var scheduleType string
		if err := json.Unmarshal(raw, &scheduleType); err != nil || scheduleType != "week" {
			return nil, validationErrorf("schedule_type must be \"week\"")
		}
	}

	if raw, ok := top["timezone"]; ok {
		var tz string
		if err := json.Unmarshal(raw, &tz); err != nil {
			return nil, validationErrorf("timezone must be a string")
		}
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, validationErrorf("unknown timezone %q", tz)
		}
		s.location = loc
	}

	if raw, ok := top["periods"]; ok {
		var dayPeriods map[string][][]string
		if err := json.Unmarshal(raw, &dayPeriods); err != nil {
			return nil, validationErrorf("malformed periods: %v", err)
		}
		for day, ranges := range dayPeriods {
			if !isWeekday(day) {
				return nil, validationErrorf("unknown weekday %q", day)
			}
			for _, r := range ranges {
				if len(r) != 2 {
					return nil, validationErrorf("%s: a period must be a [start, end] pair", day)
				}
				start, err := parseTimeOfDay(r[0])
				if err != nil {
					return nil, validationErrorf("%s: %v", day, err)
				}
				end, err := parseTimeOfDay(r[1])
				if err != nil {
					return nil, validationErrorf("%s: %v", day, err)
				}
				if start >= end {
					return nil, validationErrorf("%s: period start %q must precede end %q", day, r[0], r[1])
				}
				s.periods[day] = append(s.periods[day], period{start: start, end: end})
			}
		}
	}

	return s, nil
}

// parseTimeOfDay 解析 "HH:MM" 为当日秒数
func parseTimeOfDay(v string) (int, error) {
	if len(v) != 5 || v[2] != ':' {
		return 0, fmt.Errorf("time %q must be HH:MM", v)
	}
	var hh, mm int
	if _, err := fmt.Sscanf(v, "%02d:%02d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("time %q must be HH:MM", v)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("time %q out of range", v)
	}
	return hh*3600 + mm*60, nil
}

// HasPeriods 是否定义了任何时间段
// 空排期在规则层被视为“不关心”，直接放行
func (s *OneWeekSchedule) HasPeriods() bool {
	return len(s.periods) > 0
}

// Timezone 排期评估所用时区
func (s *OneWeekSchedule) Timezone() *time.Location {
	return s.location
}

// Contains 判断时刻是否落在排期内
// 空排期不匹配任何时刻；时间段边界均为闭区间
func (s *OneWeekSchedule) Contains(t time.Time) bool {
	if len(s.periods) == 0 {
		return false
	}

	local := t.In(s.location)
	ranges, ok := s.periods[weekdayName(local.Weekday())]
	if !ok {
		return false
	}

	secondsOfDay := local.Hour()*3600 + local.Minute()*60 + local.Second()
	for _, p := range ranges {
		if p.start <= secondsOfDay && secondsOfDay <= p.end {
			return true
		}
	}
	return false
}
