package tiers

import (
	"fmt"
	"slices"
)

// Feature is a metered product capability. The set is closed: every tier
// must declare a cap for every feature.
type Feature string

const (
	ResumeGeneration      Feature = "resumeGeneration"
	CoverLetterGeneration Feature = "coverLetterGeneration"
	JobAnalysis           Feature = "jobAnalysis"
	JobTrackers           Feature = "jobTrackers"
	JobApplications       Feature = "jobApplications"
	InterviewPrep         Feature = "interviewPrep"
	LinkedinOptimization  Feature = "linkedinOptimization"
)

var allFeatures = []Feature{
	ResumeGeneration,
	CoverLetterGeneration,
	JobAnalysis,
	JobTrackers,
	JobApplications,
	InterviewPrep,
	LinkedinOptimization,
}

var displayNames = map[Feature]string{
	ResumeGeneration:      "resume generations",
	CoverLetterGeneration: "cover letter generations",
	JobAnalysis:           "job analysis requests",
	JobTrackers:           "job trackers",
	JobApplications:       "job applications",
	InterviewPrep:         "interview prep sessions",
	LinkedinOptimization:  "LinkedIn optimizations",
}

// Features returns every known feature in a stable order.
func Features() []Feature {
	return slices.Clone(allFeatures)
}

// ParseFeature validates a feature key coming from the outside world.
func ParseFeature(s string) (Feature, error) {
	f := Feature(s)
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownFeature, s)
	}
	return f, nil
}

func (f Feature) Valid() bool {
	_, ok := displayNames[f]
	return ok
}

// DisplayName is the plural label shown to end users, e.g. "job analysis requests".
func (f Feature) DisplayName() string {
	if name, ok := displayNames[f]; ok {
		return name
	}
	return string(f)
}

func (f Feature) String() string {
	return string(f)
}
