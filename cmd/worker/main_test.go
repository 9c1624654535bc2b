package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/servicedesk/servicedesk/internal/app"
	_ "github.com/servicedesk/servicedesk/testing"
)

func TestWorkerSkipsStartupInTestMode(t *testing.T) {
	app.RefreshTestMode()
	assert.True(t, app.InTestMode())
	assert.NotPanics(t, main)
}
