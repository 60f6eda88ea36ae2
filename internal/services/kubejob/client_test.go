package kubejob

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"tierwatch/internal/logging"
)

type recordedCall struct {
	args     []string
	manifest string
}

// fakeExecutor records kubectl invocations. Apply manifests are read at call
// time because the client deletes the temp file afterwards.
type fakeExecutor struct {
	calls []recordedCall
	out   string
	err   error
}

func (e *fakeExecutor) Run(ctx context.Context, binary string, args []string) (string, error) {
	rec := recordedCall{args: args}
	if len(args) >= 3 && args[0] == "apply" && args[1] == "-f" {
		data, err := os.ReadFile(args[2])
		if err == nil {
			rec.manifest = string(data)
		}
	}
	e.calls = append(e.calls, rec)
	return e.out, e.err
}

func testSpec() Spec {
	return Spec{
		JobName:     "intel-7-ingest-12",
		Namespace:   "ingest-jobs",
		Collection:  "intel_7",
		Image:       "alpine:3.19",
		PVCName:     "hub-pvc",
		IngestorURL: "http://ingestor:8082",
		Files:       []string{"/data/reports/a.pdf", "/data/reports/b.txt"},
	}
}

func newTestClient(t *testing.T, exec Executor) *Client {
	t.Helper()
	client, err := New("kubectl", "ingest-jobs", logging.NewNop(), WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestRenderConfigMapListsFiles(t *testing.T) {
	out, err := RenderConfigMap(testSpec())
	if err != nil {
		t.Fatalf("RenderConfigMap: %v", err)
	}
	var cm configMap
	if err := yaml.Unmarshal(out, &cm); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cm.Kind != "ConfigMap" || cm.APIVersion != "v1" {
		t.Errorf("kind/apiVersion = %s/%s", cm.Kind, cm.APIVersion)
	}
	if cm.Metadata.Name != "intel-7-ingest-12-file-list" {
		t.Errorf("name = %q", cm.Metadata.Name)
	}
	if cm.Metadata.Namespace != "ingest-jobs" {
		t.Errorf("namespace = %q", cm.Metadata.Namespace)
	}
	if cm.Data["files.txt"] != "/data/reports/a.pdf\n/data/reports/b.txt" {
		t.Errorf("files.txt = %q", cm.Data["files.txt"])
	}
}

func TestRenderJobShape(t *testing.T) {
	out, err := RenderJob(testSpec())
	if err != nil {
		t.Fatalf("RenderJob: %v", err)
	}
	var j job
	if err := yaml.Unmarshal(out, &j); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if j.APIVersion != "batch/v1" || j.Kind != "Job" {
		t.Errorf("kind/apiVersion = %s/%s", j.Kind, j.APIVersion)
	}
	if j.Spec.BackoffLimit != 0 {
		t.Errorf("backoffLimit = %d, want 0", j.Spec.BackoffLimit)
	}
	pod := j.Spec.Template.Spec
	if pod.RestartPolicy != "Never" {
		t.Errorf("restartPolicy = %q", pod.RestartPolicy)
	}
	if len(pod.Containers) != 1 {
		t.Fatalf("containers = %d, want 1", len(pod.Containers))
	}
	ctr := pod.Containers[0]
	if ctr.Name != "ingest" || ctr.Image != "alpine:3.19" {
		t.Errorf("container = %s/%s", ctr.Name, ctr.Image)
	}
	if len(ctr.Env) != 1 || ctr.Env[0].Name != "COLLECTION_NAME" || ctr.Env[0].Value != "intel_7" {
		t.Errorf("env = %v", ctr.Env)
	}
	if len(ctr.Args) != 1 || !strings.Contains(ctr.Args[0], "http://ingestor:8082") {
		t.Error("upload script missing ingestor URL")
	}
	if !strings.Contains(ctr.Args[0], "/work/files.txt") {
		t.Error("upload script missing file list path")
	}
	if len(pod.Volumes) != 2 {
		t.Fatalf("volumes = %d, want 2", len(pod.Volumes))
	}
	if pod.Volumes[0].PersistentVolumeClaim == nil || pod.Volumes[0].PersistentVolumeClaim.ClaimName != "hub-pvc" {
		t.Errorf("documents volume = %+v", pod.Volumes[0])
	}
	if pod.Volumes[1].ConfigMap == nil || pod.Volumes[1].ConfigMap.Name != "intel-7-ingest-12-file-list" {
		t.Errorf("filelist volume = %+v", pod.Volumes[1])
	}
}

func TestSubmitAppliesConfigMapBeforeJob(t *testing.T) {
	exec := &fakeExecutor{}
	client := newTestClient(t, exec)

	if err := client.Submit(context.Background(), testSpec()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(exec.calls) != 2 {
		t.Fatalf("got %d kubectl calls, want 2", len(exec.calls))
	}
	if !strings.Contains(exec.calls[0].manifest, "kind: ConfigMap") {
		t.Error("first apply was not the ConfigMap")
	}
	if !strings.Contains(exec.calls[1].manifest, "kind: Job") {
		t.Error("second apply was not the Job")
	}
}

func TestSubmitRequiresJobName(t *testing.T) {
	exec := &fakeExecutor{}
	client := newTestClient(t, exec)

	spec := testSpec()
	spec.JobName = ""
	if err := client.Submit(context.Background(), spec); err == nil {
		t.Fatal("expected error for missing job name")
	}
	if len(exec.calls) != 0 {
		t.Errorf("kubectl ran %d times, want 0", len(exec.calls))
	}
}

func TestSubmitDefaultsNamespace(t *testing.T) {
	exec := &fakeExecutor{}
	client := newTestClient(t, exec)

	spec := testSpec()
	spec.Namespace = ""
	if err := client.Submit(context.Background(), spec); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !strings.Contains(exec.calls[0].manifest, "namespace: ingest-jobs") {
		t.Error("client namespace not applied to manifest")
	}
}

func TestSucceeded(t *testing.T) {
	tests := []struct {
		name string
		out  string
		err  error
		want bool
		fail bool
	}{
		{name: "succeeded", out: "1", want: true},
		{name: "running", out: "", want: false},
		{name: "zero", out: "0", want: false},
		{name: "not found yet", out: "", err: errors.New(`jobs.batch "x" NotFound`), want: false},
		{name: "cluster error", out: "", err: errors.New("connection refused"), fail: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{out: tt.out, err: tt.err}
			client := newTestClient(t, exec)
			got, err := client.Succeeded(context.Background(), "intel-7-ingest-12")
			if tt.fail {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Succeeded: %v", err)
			}
			if got != tt.want {
				t.Errorf("Succeeded = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSucceededQueriesExactJobName(t *testing.T) {
	exec := &fakeExecutor{out: "1"}
	client := newTestClient(t, exec)
	if _, err := client.Succeeded(context.Background(), "intel-7-ingest-12"); err != nil {
		t.Fatalf("Succeeded: %v", err)
	}
	args := exec.calls[0].args
	want := []string{"get", "job", "intel-7-ingest-12", "-n", "ingest-jobs", "-o", "jsonpath={.status.succeeded}"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestDeleteRemovesJobAndConfigMap(t *testing.T) {
	exec := &fakeExecutor{}
	client := newTestClient(t, exec)

	if err := client.Delete(context.Background(), "intel-7-ingest-12"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(exec.calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(exec.calls))
	}
	if exec.calls[0].args[1] != "job" || exec.calls[1].args[1] != "configmap" {
		t.Errorf("calls = %v", exec.calls)
	}
	if exec.calls[1].args[2] != "intel-7-ingest-12-file-list" {
		t.Errorf("configmap name = %q", exec.calls[1].args[2])
	}
}
