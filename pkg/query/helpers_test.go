package query

import (
	"fmt"
	"time"

	"github.com/motorlot/apiserver/types"
)

var testNow = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T {
	return &v
}

func ids(ls []types.Listing) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.ID)
	}
	return out
}

func approved(id string) types.Listing {
	return types.Listing{
		ID:        id,
		Title:     "Listing " + id,
		Status:    types.StatusApproved,
		CreatedAt: testNow.Add(-time.Hour),
	}
}

func approvedN(n int) []types.Listing {
	ls := make([]types.Listing, n)
	for i := range ls {
		ls[i] = approved(fmt.Sprintf("l%02d", i))
	}
	return ls
}

func catalog() []types.Listing {
	return []types.Listing{
		{ID: "corolla", Title: "Clean Corolla", Make: "Toyota", Model: "Corolla", BodyType: "Sedan", Condition: "Good", Transmission: "Automatic", FuelType: "Gasoline", Color: "Silver", Year: 2018, Price: 900000, Mileage: ptr[int64](60000), Status: types.StatusApproved},
		{ID: "hilux", Title: "Work truck", Make: "Toyota", Model: "Hilux", BodyType: "Truck", Condition: "Fair", Transmission: "Manual", FuelType: "Diesel", Color: "White", Year: 2015, Price: 1500000, Mileage: ptr[int64](150000), Status: types.StatusApproved},
		{ID: "civic", Title: "Civic Type R", Make: "Honda", Model: "Civic", BodyType: "Hatchback", Condition: "Excellent", Transmission: "Manual", FuelType: "Gasoline", Color: "Dark Red", Year: 2021, Price: 2500000, Mileage: ptr[int64](12000), Status: types.StatusApproved},
		{ID: "leaf", Title: "City EV", Make: "Nissan", Model: "Leaf", BodyType: "Hatchback", Condition: "New", Transmission: "Automatic", FuelType: "Electric", Color: "Blue", Year: 2023, Price: 3000000, Status: types.StatusApproved},
		{ID: "model3", Title: "Tesla Model 3", Make: "Tesla", Model: "Model 3", BodyType: "Sedan", Condition: "Excellent", Transmission: "Automatic", FuelType: "Electric", Color: "Red", Year: 2022, Price: 4000000, Mileage: ptr[int64](20000), Status: types.StatusApproved},
	}
}
