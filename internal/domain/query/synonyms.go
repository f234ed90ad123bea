package query

import (
	"regexp"
	"sort"
	"strings"
)

// synonyms maps unambiguous Red Hat abbreviations to product names.
var synonyms = map[string]string{
	"OCP":     "OpenShift Container Platform",
	"RHEL":    "Red Hat Enterprise Linux",
	"RHOSP":   "Red Hat OpenStack Platform",
	"RHOAI":   "Red Hat OpenShift AI",
	"RHODS":   "Red Hat OpenShift Data Science",
	"RHACS":   "Red Hat Advanced Cluster Security",
	"RHACM":   "Red Hat Advanced Cluster Management",
	"AAP":     "Ansible Automation Platform",
	"ACM":     "Advanced Cluster Management",
	"ACS":     "Advanced Cluster Security",
	"ARO":     "Azure Red Hat OpenShift",
	"ROSA":    "Red Hat OpenShift Service on AWS",
	"ODF":     "OpenShift Data Foundation",
	"OVN":     "Open Virtual Networking",
	"SDN":     "Software Defined Networking",
	"CNV":     "OpenShift Virtualization",
	"k8s":     "Kubernetes",
	"OOM":     "Out of Memory",
	"SELinux": "Security-Enhanced Linux",
	"RBAC":    "role-based access control",
	"CRI-O":   "CRI-O container runtime",
	"FIPS":    "Federal Information Processing Standards",
	"LDAP":    "Lightweight Directory Access Protocol",
	"IdM":     "Identity Management",
	"IPA":     "Identity Policy Audit",
	"EUS":     "Extended Update Support",
	"E4S":     "Update Services for SAP Solutions",
	"TUS":     "Telecommunications Update Service",
}

var synonymPattern = func() *regexp.Regexp {
	keys := make([]string, 0, len(synonyms))
	for k := range synonyms {
		keys = append(keys, regexp.QuoteMeta(k))
	}
	// Longest first so RHACS wins over ACS at the same position.
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	return regexp.MustCompile(`\b(` + strings.Join(keys, "|") + `)\b`)
}()

// Expand appends the product name after the first whole-word, case-sensitive
// occurrence of each known abbreviation: "install OCP" → "install OCP (OpenShift Container Platform)".
func Expand(q string) string {
	seen := make(map[string]bool)
	return synonymPattern.ReplaceAllStringFunc(q, func(m string) string {
		if seen[m] {
			return m
		}
		seen[m] = true
		return m + " (" + synonyms[m] + ")"
	})
}
