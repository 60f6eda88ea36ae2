package kubejob

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Spec describes one ingestion job: the files to upload, the collection to
// upload into, and the cluster resources the job binds to.
type Spec struct {
	JobName     string
	Namespace   string
	Collection  string
	Image       string
	PVCName     string
	IngestorURL string
	// Files are container-relative paths, already rewritten onto the
	// volume mount prefix.
	Files []string
}

type metadata struct {
	Name      string `yaml:"name"`
	Namespace string `yaml:"namespace"`
}

type configMap struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   metadata          `yaml:"metadata"`
	Data       map[string]string `yaml:"data"`
}

type envVar struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type volumeMount struct {
	Name      string `yaml:"name"`
	MountPath string `yaml:"mountPath"`
}

type container struct {
	Name         string        `yaml:"name"`
	Image        string        `yaml:"image"`
	Command      []string      `yaml:"command"`
	Args         []string      `yaml:"args"`
	Env          []envVar      `yaml:"env"`
	VolumeMounts []volumeMount `yaml:"volumeMounts"`
}

type pvcSource struct {
	ClaimName string `yaml:"claimName"`
}

type configMapItem struct {
	Key  string `yaml:"key"`
	Path string `yaml:"path"`
}

type configMapSource struct {
	Name  string          `yaml:"name"`
	Items []configMapItem `yaml:"items"`
}

type volume struct {
	Name                  string           `yaml:"name"`
	PersistentVolumeClaim *pvcSource       `yaml:"persistentVolumeClaim,omitempty"`
	ConfigMap             *configMapSource `yaml:"configMap,omitempty"`
}

type podSpec struct {
	RestartPolicy string      `yaml:"restartPolicy"`
	Containers    []container `yaml:"containers"`
	Volumes       []volume    `yaml:"volumes"`
}

type podTemplate struct {
	Spec podSpec `yaml:"spec"`
}

type jobSpec struct {
	BackoffLimit int         `yaml:"backoffLimit"`
	Template     podTemplate `yaml:"template"`
}

type job struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   metadata `yaml:"metadata"`
	Spec       jobSpec  `yaml:"spec"`
}

// fileListName is the ConfigMap suffix carrying the upload manifest.
func fileListName(jobName string) string {
	return jobName + "-file-list"
}

// RenderConfigMap produces the ConfigMap manifest holding the job's file
// list, one container path per line.
func RenderConfigMap(spec Spec) ([]byte, error) {
	cm := configMap{
		APIVersion: "v1",
		Kind:       "ConfigMap",
		Metadata:   metadata{Name: fileListName(spec.JobName), Namespace: spec.Namespace},
		Data:       map[string]string{"files.txt": strings.Join(spec.Files, "\n")},
	}
	out, err := yaml.Marshal(cm)
	if err != nil {
		return nil, fmt.Errorf("marshal configmap: %w", err)
	}
	return out, nil
}

// RenderJob produces the batch Job manifest. The job runs once with no
// retries: failures surface through the status poll rather than a requeue.
func RenderJob(spec Spec) ([]byte, error) {
	j := job{
		APIVersion: "batch/v1",
		Kind:       "Job",
		Metadata:   metadata{Name: spec.JobName, Namespace: spec.Namespace},
		Spec: jobSpec{
			BackoffLimit: 0,
			Template: podTemplate{
				Spec: podSpec{
					RestartPolicy: "Never",
					Containers: []container{{
						Name:    "ingest",
						Image:   spec.Image,
						Command: []string{"/bin/sh", "-lc"},
						Args:    []string{uploadScript(spec.IngestorURL)},
						Env:     []envVar{{Name: "COLLECTION_NAME", Value: spec.Collection}},
						VolumeMounts: []volumeMount{
							{Name: "documents", MountPath: "/data"},
							{Name: "filelist", MountPath: "/work"},
						},
					}},
					Volumes: []volume{
						{
							Name:                  "documents",
							PersistentVolumeClaim: &pvcSource{ClaimName: spec.PVCName},
						},
						{
							Name: "filelist",
							ConfigMap: &configMapSource{
								Name:  fileListName(spec.JobName),
								Items: []configMapItem{{Key: "files.txt", Path: "files.txt"}},
							},
						},
					},
				},
			},
		},
	}
	out, err := yaml.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	return out, nil
}

// uploadScript is the container payload: create the collection, then stream
// every listed file to the ingestion API, counting outcomes.
func uploadScript(ingestorURL string) string {
	return fmt.Sprintf(`set -euo pipefail
apk add --no-cache curl coreutils
API=%q
COLLECTION_NAME="${COLLECTION_NAME:?collection name required}"
LIST="/work/files.txt"

echo "Creating collection: ${COLLECTION_NAME}"
curl -sf -X POST "${API}/collection" \
  -H "Content-Type: application/json" \
  -d "{\"collection_name\":\"${COLLECTION_NAME}\"}" || true

successes=0; failures=0
while IFS= read -r f || [ -n "${f-}" ]; do
  case "${f}" in ""|\#*) continue;; esac
  if [ -f "${f}" ]; then
    echo "Uploading: ${f}"
    if curl -sf -X POST "${API}/documents" \
          -F "documents=@${f}" \
          -F "data={\"collection_name\":\"${COLLECTION_NAME}\"}"; then
      successes=$((successes+1))
    else
      echo "Upload failed: ${f}" >&2
      failures=$((failures+1))
    fi
  else
    echo "Missing file: ${f}" >&2
    failures=$((failures+1))
  fi
done < "${LIST}"

echo "Submitted. Successes=${successes}, Failures=${failures}"
[ "${failures}" -eq 0 ]
`, ingestorURL)
}
