package main

// DemoBooks returns the books inserted by the `init-db` command.
func DemoBooks() []Book {
	return []Book{
		newDemoBook("Cien años de soledad", "Gabriel García Márquez", 1967, "Realismo mágico"),
		newDemoBook("El Quijote", "Miguel de Cervantes", 1605, "Novela"),
		newDemoBook("Rayuela", "Julio Cortázar", 1963, "Novela"),
	}
}

func newDemoBook(title, author string, year int, genre string) Book {
	return Book{Title: title, Author: author, Year: &year, Genre: &genre}
}
