package scoring

import "github.com/pavelanni/pathway/internal/model"

// PCL-5 symptom clusters.
const (
	ClusterIntrusion  = "B"
	ClusterAvoidance  = "C"
	ClusterCognition  = "D"
	ClusterReactivity = "E"
)

// PCL5Clusters lists the clusters in DSM-5 order.
var PCL5Clusters = []string{ClusterIntrusion, ClusterAvoidance, ClusterCognition, ClusterReactivity}

// PCL5ClusterMax is the maximum attainable total per cluster (items scored 0..4).
var PCL5ClusterMax = map[string]int{
	ClusterIntrusion:  20,
	ClusterAvoidance:  8,
	ClusterCognition:  28,
	ClusterReactivity: 24,
}

// pcl5ClusterOf maps a zero-based PCL-5 item index to its cluster.
func pcl5ClusterOf(i int) string {
	switch {
	case i < 5:
		return ClusterIntrusion
	case i < 7:
		return ClusterAvoidance
	case i < 14:
		return ClusterCognition
	default:
		return ClusterReactivity
	}
}

// LabelPCL5Clusters fills in missing cluster labels on a PCL-5 template
// using the standard item ranges (1-5, 6-7, 8-14, 15-20).
func LabelPCL5Clusters(t *model.AssessmentTemplate) {
	if t == nil || t.Code != model.CodePCL5 {
		return
	}
	for i := range t.Questions {
		if t.Questions[i].Cluster == "" {
			t.Questions[i].Cluster = pcl5ClusterOf(i)
		}
	}
}

// DERS18Subscales maps each DERS-18 subscale to its 1-based items.
var DERS18Subscales = map[string][]int{
	"awareness":     {1, 4, 6},
	"clarity":       {2, 3, 5},
	"goals":         {8, 12, 15},
	"impulse":       {9, 16, 18},
	"nonacceptance": {7, 13, 14},
	"strategies":    {10, 11, 17},
}

// Result is the scored summary of one instrument.
type Result struct {
	Code      string         `json:"code"`
	Total     int            `json:"total"`
	Mean      string         `json:"mean"`
	Subscales map[string]int `json:"subscales,omitempty"`
}

// Score computes the instrument-specific result for a template.
func Score(t *model.AssessmentTemplate, scores model.ScoreVector) Result {
	res := Result{Mean: MeanItemScore(t, scores)}
	if t == nil {
		res.Total = Total(scores)
		return res
	}
	res.Code = t.Code

	switch t.Code {
	case model.CodePCL5:
		res.Total = Total(scores)
		res.Subscales = make(map[string]int, len(PCL5Clusters))
		for _, c := range PCL5Clusters {
			res.Subscales[c] = ClusterTotal(t, scores, c)
		}
	case model.CodeDERS18:
		res.Total = GrandTotalWithReversal(t, scores)
		res.Subscales = make(map[string]int, len(DERS18Subscales))
		for name, items := range DERS18Subscales {
			res.Subscales[name] = ReverseAdjusted(t, scores, items)
		}
	default:
		res.Total = GrandTotalWithReversal(t, scores)
	}
	return res
}
