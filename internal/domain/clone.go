package domain

import (
	"reflect"
	"time"
)

// clone returns a copy of v that shares no mutable memory with it. The
// engine's own payloads are copied field by field. Anything else goes
// through cloneValue. Nil slices and maps come back empty.
func clone(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string, int, float64, bool, time.Time, Axis, Dimension:
		return val
	case AnswerMap:
		return cloneAnswers(val)
	case []Set:
		return append(make([]Set, 0, len(val)), val...)
	case *Result:
		if val == nil {
			return val
		}
		r := cloneResult(*val)
		return &r
	case []StoredResponse:
		out := make([]StoredResponse, len(val))
		for i, r := range val {
			out[i] = cloneStoredResponse(r)
		}
		return out
	case *AggregateReport:
		if val == nil {
			return val
		}
		r := cloneReport(*val)
		return &r
	default:
		return cloneValue(reflect.ValueOf(v)).Interface()
	}
}

func cloneAnswers(a AnswerMap) AnswerMap {
	out := make(AnswerMap, len(a))
	for id, v := range a {
		out[id] = v
	}
	return out
}

func cloneResult(r Result) Result {
	r.Scores = append(make([]AxisScore, 0, len(r.Scores)), r.Scores...)
	return r
}

func cloneStoredResponse(r StoredResponse) StoredResponse {
	scores := make(StoredAxisScores, len(r.AxisScores))
	for axis, poles := range r.AxisScores {
		inner := make(map[string]float64, len(poles))
		for pole, v := range poles {
			inner[pole] = v
		}
		scores[axis] = inner
	}
	r.AxisScores = scores

	poles := make(StoredPoles, len(r.Pole))
	for axis, pole := range r.Pole {
		poles[axis] = pole
	}
	r.Pole = poles
	return r
}

func cloneReport(r AggregateReport) AggregateReport {
	r.TypeDistribution = append(make([]TypeCount, 0, len(r.TypeDistribution)), r.TypeDistribution...)

	stats := make([]AxisStat, len(r.AxisStats))
	for i, s := range r.AxisStats {
		dist := make(map[string]float64, len(s.PoleDistribution))
		for pole, v := range s.PoleDistribution {
			dist[pole] = v
		}
		s.PoleDistribution = dist
		stats[i] = s
	}
	r.AxisStats = stats

	r.Insights.HighVarianceAxes = append(make([]HighVarianceAxis, 0, len(r.Insights.HighVarianceAxes)), r.Insights.HighVarianceAxes...)
	r.Insights.SkewedAxes = append(make([]SkewedAxis, 0, len(r.Insights.SkewedAxes)), r.Insights.SkewedAxes...)
	return r
}

// cloneValue deep copies slices, maps, pointers and the exported fields of
// structs. Unexported struct fields are left zero.
func cloneValue(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Slice:
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := range v.Len() {
			out.Index(i).Set(cloneValue(v.Index(i)))
		}
		return out

	case reflect.Map:
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return out

	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(cloneValue(v.Elem()))
		return out

	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(cloneValue(v.Elem()))
		return out

	case reflect.Struct:
		if v.Type() == reflect.TypeFor[time.Time]() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		for i := range v.NumField() {
			if out.Field(i).CanSet() {
				out.Field(i).Set(cloneValue(v.Field(i)))
			}
		}
		return out

	default:
		return v
	}
}
