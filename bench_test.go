package taproot

import "testing"

// benchPySource is a realistic Python module with classes, inheritance,
// properties, and module-level constants for exercising the full build and
// inference pipeline.
const benchPySource = `"""Order pricing with tax and discount rules."""

TAX_RATE = 0.08
FREE_SHIPPING_FLOOR = 50


class Discount:
    """Percentage discount applied to a subtotal."""

    def __init__(self, percent):
        self.percent = percent

    def apply(self, amount):
        return amount - amount * self.percent / 100


class Item:
    def __init__(self, name, price, quantity=1):
        self.name = name
        self.price = price
        self.quantity = quantity

    def subtotal(self):
        return self.price * self.quantity

    def label(self):
        return f"{self.name} x{self.quantity}"


class TaxedItem(Item):
    """Item whose subtotal includes sales tax."""

    def subtotal(self):
        base = self.price * self.quantity
        return base + base * TAX_RATE


class Order:
    def __init__(self):
        self.items = []
        self.discount = None

    def add(self, item):
        self.items.append(item)

    def set_discount(self, discount):
        self.discount = discount

    @property
    def count(self):
        return len(self.items)

    def total(self):
        amount = 0
        for item in self.items:
            amount += item.subtotal()
        if self.discount is not None:
            amount = self.discount.apply(amount)
        return amount


def ships_free(order):
    return order.total() >= FREE_SHIPPING_FLOOR


def describe(order):
    lines = [item.label() for item in order.items]
    return ", ".join(lines)


order = Order()
BASE_PRICE = 19
BULK_FACTOR = 4
result = BASE_PRICE * BULK_FACTOR + 2 ** 3
`

// setupBenchSession creates a session with default options. Caller must
// close it.
func setupBenchSession(b *testing.B) *Session {
	b.Helper()
	sess, err := NewSession()
	if err != nil {
		b.Fatal(err)
	}
	return sess
}

// benchBinding is the benchmark equivalent of lastBinding.
func benchBinding(b *testing.B, mod *Module, name string) Node {
	b.Helper()
	binds := mod.LocalBindings(name)
	if len(binds) == 0 {
		b.Fatalf("no module binding for %q", name)
	}
	return binds[len(binds)-1]
}

// BenchmarkBuildSource measures the time to parse a realistic Python module
// and construct its tree, including scope and binding registration.
func BenchmarkBuildSource(b *testing.B) {
	sess := setupBenchSession(b)
	defer sess.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := sess.BuildSource([]byte(benchPySource), "bench", ""); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkInferAll_Cold measures inference of a constant-folding chain on a
// freshly built tree each iteration, so every result is computed rather than
// served from the cache.
func BenchmarkInferAll_Cold(b *testing.B) {
	sess := setupBenchSession(b)
	defer sess.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		mod, err := sess.BuildSource([]byte(benchPySource), "bench", "")
		if err != nil {
			b.Fatal(err)
		}
		target := benchBinding(b, mod, "result")
		b.StartTimer()

		if _, err := InferAll(target, nil); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkInferAll_Cached measures repeated inference of the same node,
// which after the first iteration is a cache hit.
func BenchmarkInferAll_Cached(b *testing.B) {
	sess := setupBenchSession(b)
	defer sess.Close()

	mod, err := sess.BuildSource([]byte(benchPySource), "bench", "")
	if err != nil {
		b.Fatal(err)
	}
	target := benchBinding(b, mod, "result")

	// Warm the cache as setup.
	if _, err := InferAll(target, nil); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := InferAll(target, nil); err != nil {
			b.Fatal(err)
		}
	}
}
