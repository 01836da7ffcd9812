package cmd

import "testing"

func TestProjectDirOfReturnsParentOfConfigFile(t *testing.T) {
	got := projectDirOf("/home/user/project/.ftlconfig")
	want := "/home/user/project"
	if got != want {
		t.Fatalf("projectDirOf() = %q, want %q", got, want)
	}
}

func TestHandleReviewCommandIgnoresUnknownInput(t *testing.T) {
	done, err := handleReviewCommand(nil, nil, "not a command")
	if done || err != nil {
		t.Fatalf("expected unknown input to fall through as not done, got done=%v err=%v", done, err)
	}
}
