package audit

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/secaware/admin-api/internal/models"
)

// Classification is the deterministic risk profile of one request.
type Classification struct {
	ActionType models.ActionType
	Resource   models.ResourceType
	ResourceID *string
	Severity   models.Severity
	Status     models.AuditStatus
	Details    string
}

// resourceKeywords maps path keywords to resource types. Order is
// significant: the first keyword found in the path wins, and historical
// classification depends on this exact sequence.
var resourceKeywords = []struct {
	keyword  string
	resource models.ResourceType
}{
	{"users", models.ResourceUser},
	{"policies", models.ResourcePolicy},
	{"projects", models.ResourceProject},
	{"tasks", models.ResourceTask},
	{"audit", models.ResourceSystem},
}

var hexIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// Classify maps a request's method, path and final response status to a
// deterministic classification. It never fails: unmatched inputs degrade
// to READ/SYSTEM/LOW defaults.
func Classify(method, path string, responseStatus int) Classification {
	actionType := actionTypeForMethod(method)

	resource := models.ResourceSystem
	for _, rk := range resourceKeywords {
		if strings.Contains(path, rk.keyword) {
			resource = rk.resource
			break
		}
	}

	var resourceID *string
	for _, segment := range strings.Split(path, "/") {
		if hexIDPattern.MatchString(segment) {
			id := segment
			resourceID = &id
			break
		}
	}

	severity := models.SeverityLow
	switch {
	case actionType == models.ActionDelete || IsAdminPath(path):
		severity = models.SeverityHigh
	case actionType == models.ActionCreate || actionType == models.ActionUpdate:
		severity = models.SeverityMedium
	}

	status := models.StatusSuccess
	switch {
	case responseStatus >= 400:
		status = models.StatusFailed
	case responseStatus >= 300:
		status = models.StatusWarning
	}

	return Classification{
		ActionType: actionType,
		Resource:   resource,
		ResourceID: resourceID,
		Severity:   severity,
		Status:     status,
		Details:    fmt.Sprintf("%s %s", verbForMethod(method), resourceNoun(path)),
	}
}

// IsAdminPath reports whether the path belongs to the administrative surface.
func IsAdminPath(path string) bool {
	return strings.Contains(path, "/admin")
}

// IsMutating reports whether the method implies a state change.
func IsMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func actionTypeForMethod(method string) models.ActionType {
	switch method {
	case http.MethodGet:
		return models.ActionRead
	case http.MethodPost:
		return models.ActionCreate
	case http.MethodPut, http.MethodPatch:
		return models.ActionUpdate
	case http.MethodDelete:
		return models.ActionDelete
	}
	return models.ActionRead
}

func verbForMethod(method string) string {
	switch method {
	case http.MethodGet:
		return "Viewed"
	case http.MethodPost:
		return "Created"
	case http.MethodPut, http.MethodPatch:
		return "Updated"
	case http.MethodDelete:
		return "Deleted"
	}
	return "Accessed"
}

// resourceNoun derives a readable noun from the path's second-to-last
// segment, which is the collection name when the path ends in an ID.
func resourceNoun(path string) string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	switch len(segments) {
	case 0:
		return "resource"
	case 1:
		return segments[0]
	}
	return segments[len(segments)-2]
}
