package uithread_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestUIThread(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "UI Thread Suite")
}
