package hass

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/hass/hasstest"
)

func registryEntities() []domain.Entity {
	return []domain.Entity{
		{EntityID: "camera.front_door", UniqueID: "abc:camera:front_door", Platform: "frigate", ConfigEntryID: "abc"},
		{EntityID: "camera.back_yard", UniqueID: "abc:camera:back_yard", Platform: "frigate", ConfigEntryID: "abc"},
		{EntityID: "binary_sensor.front_door_motion", UniqueID: "abc:motion_sensor:front_door", Platform: "frigate", ConfigEntryID: "abc"},
		{EntityID: "light.kitchen", UniqueID: "hue-1", Platform: "hue"},
	}
}

func TestRegistry_GetEntityCaches(t *testing.T) {
	client := hasstest.NewClient().Handle("config/entity_registry/get", func(req map[string]any) (any, error) {
		return domain.Entity{EntityID: req["entity_id"].(string), Platform: "frigate"}, nil
	})
	reg := NewRegistry(nil, nil)

	entity, err := reg.GetEntity(context.Background(), client, "camera.front_door")
	require.NoError(t, err)
	assert.Equal(t, "frigate", entity.Platform)

	_, err = reg.GetEntity(context.Background(), client, "camera.front_door")
	require.NoError(t, err)
	assert.Len(t, client.Calls("config/entity_registry/get"), 1)
}

func TestRegistry_GetEntityNotFound(t *testing.T) {
	client := hasstest.NewClient().Handle("config/entity_registry/get", func(map[string]any) (any, error) {
		return nil, &Error{Code: ErrCodeNotFound, Message: "Entity not found"}
	})
	reg := NewRegistry(nil, nil)

	_, err := reg.GetEntity(context.Background(), client, "camera.frnt_door")
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)
}

func TestRegistry_GetMatchingEntities(t *testing.T) {
	client := hasstest.NewClient().Respond("config/entity_registry/list", registryEntities())
	reg := NewRegistry(nil, nil)

	matches, err := reg.GetMatchingEntities(context.Background(), client, func(e domain.Entity) bool {
		return e.Platform == "frigate"
	})
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "binary_sensor.front_door_motion", matches[0].EntityID)

	_, err = reg.GetMatchingEntities(context.Background(), client, func(domain.Entity) bool { return true })
	require.NoError(t, err)
	assert.Len(t, client.Calls("config/entity_registry/list"), 1, "registry listed once")

	entity, err := reg.GetEntity(context.Background(), client, "light.kitchen")
	require.NoError(t, err)
	assert.Equal(t, "hue", entity.Platform)
	assert.Empty(t, client.Calls("config/entity_registry/get"), "served from the listed registry")
}

func TestRegistry_Suggest(t *testing.T) {
	client := hasstest.NewClient().Respond("config/entity_registry/list", registryEntities())
	reg := NewRegistry(nil, nil)

	suggestions := reg.Suggest(context.Background(), client, "camera.frnt_door")
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "camera.front_door", suggestions[0])

	assert.Empty(t, reg.Suggest(context.Background(), client, "zzzzzzzzzzzzzzzzzzzzzzzz"))
}

func TestRequestType(t *testing.T) {
	assert.Equal(t, "auth/sign_path", requestType(signPathRequest{Type: "auth/sign_path"}))
	assert.Equal(t, "ping", requestType(map[string]any{"type": "ping"}))
	assert.Equal(t, "unknown", requestType(42))
}
