package units

import (
	"sort"

	"github.com/ahrav/go-mfdc/internal/domain"
)

// GroupByType lists participants per leadership type. Types are ordered
// ascending and participants by name, with unnamed participants last.
func GroupByType(responses []domain.StoredResponse) []domain.TypeGroup {
	byType := make(map[string][]domain.Participant)
	for _, r := range responses {
		byType[r.LeadershipType] = append(byType[r.LeadershipType], participantOf(r))
	}

	groups := make([]domain.TypeGroup, 0, len(byType))
	for code, ps := range byType {
		sort.SliceStable(ps, func(i, j int) bool { return nameLess(ps[i].Name, ps[j].Name) })
		groups = append(groups, domain.TypeGroup{Type: code, Participants: ps, Count: len(ps)})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Type < groups[j].Type })
	return groups
}

// GroupByAxisPole lists, for every axis in canonical order, the participants
// under each non-balanced dominant pole with their score on that pole.
// Participants are ordered by score, highest first. Only poles that have at
// least one participant are listed.
func GroupByAxisPole(responses []domain.StoredResponse) []domain.AxisGroup {
	specs := domain.AxisSpecs()
	out := make([]domain.AxisGroup, 0, len(specs))

	for _, spec := range specs {
		byPole := make(map[string][]domain.ScoredParticipant)
		for _, r := range responses {
			pole := r.Pole[spec.Key]
			if pole == "" || pole == domain.PoleBalanced {
				continue
			}
			byPole[pole] = append(byPole[pole], domain.ScoredParticipant{
				Participant: participantOf(r),
				Score:       r.AxisScores[spec.Key][pole],
			})
		}

		group := domain.AxisGroup{Axis: spec.Key, Poles: make([]domain.PoleGroup, 0, len(byPole))}
		for _, pole := range poleOrder(spec, byPole) {
			ps := byPole[pole]
			sort.SliceStable(ps, func(i, j int) bool { return ps[i].Score > ps[j].Score })
			group.Poles = append(group.Poles, domain.PoleGroup{Pole: pole, Participants: ps, Count: len(ps)})
		}
		out = append(out, group)
	}
	return out
}

// poleOrder lists the axis's own poles first, then any other stored label
// alphabetically.
func poleOrder(spec domain.AxisSpec, byPole map[string][]domain.ScoredParticipant) []string {
	order := make([]string, 0, len(byPole))
	for _, p := range []string{spec.Pole1Key, spec.Pole2Key} {
		if _, ok := byPole[p]; ok {
			order = append(order, p)
		}
	}
	extra := make([]string, 0)
	for p := range byPole {
		if p != spec.Pole1Key && p != spec.Pole2Key {
			extra = append(extra, p)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

func participantOf(r domain.StoredResponse) domain.Participant {
	return domain.Participant{Name: r.ParticipantName, Email: r.ParticipantEmail}
}

func nameLess(a, b string) bool {
	if a == "" || b == "" {
		return a != "" && b == ""
	}
	return a < b
}
